// Package seed produces synthetic step submissions for demo leagues and local testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ingest"
)

// SampleDays is the length of the sample history written by SampleWeek.
const SampleDays = 7

// Submitter applies a decoded submission.
type Submitter interface {
	Submit(ctx context.Context, sub ingest.Submission) (ingest.Result, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand replaces the random source. Tests pass a seeded PCG.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rand = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator submits one random single-day count per configured user.
type Generator struct {
	submitter Submitter
	users     []string
	minSteps  int64
	maxSteps  int64
	calendar  domain.Calendar
	logger    *slog.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

// NewGenerator validates the step range and builds a Generator.
func NewGenerator(submitter Submitter, users []string, minSteps, maxSteps int64, calendar domain.Calendar, opts ...Option) (*Generator, error) {
	if minSteps < 0 || minSteps > maxSteps {
		return nil, fmt.Errorf("seed step range [%d, %d] is invalid", minSteps, maxSteps)
	}
	g := &Generator{
		submitter: submitter,
		users:     append([]string(nil), users...),
		minSteps:  minSteps,
		maxSteps:  maxSteps,
		calendar:  calendar,
		logger:    slog.Default(),
		rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "seeder")
	return g, nil
}

// steps draws uniformly from [minSteps, maxSteps].
func (g *Generator) steps() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minSteps + g.rand.Int64N(g.maxSteps-g.minSteps+1)
}

// RunOnce submits today's count for every user. A failing user does not stop the others;
// all failures are joined into the returned error.
func (g *Generator) RunOnce(ctx context.Context) (int, error) {
	today := g.calendar.Today()
	var (
		submitted int
		errs      []error
	)
	for _, user := range g.users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		sub, err := ingest.SingleDay(user, today, g.steps())
		if err != nil {
			errs = append(errs, fmt.Errorf("seed %s: %w", user, err))
			continue
		}
		if _, err := g.submitter.Submit(ctx, sub); err != nil {
			g.logger.Warn("seed submission failed", "user_id", user, "error", err)
			errs = append(errs, fmt.Errorf("seed %s: %w", user, err))
			continue
		}
		submitted++
	}
	g.logger.Info("seed run finished", "date", today.String(), "submitted", submitted, "failed", len(errs))
	return submitted, errors.Join(errs...)
}

// SampleWeek builds the fixed seven-day sample ending today. The value for the day i days
// before today is 5000 + i*1000 + (i%3)*500.
func SampleWeek(userID string, today domain.Date) (ingest.Submission, error) {
	steps := make([]int64, SampleDays)
	for i := 0; i < SampleDays; i++ {
		steps[SampleDays-1-i] = int64(5000 + i*1000 + (i%3)*500)
	}
	return ingest.Backfill(userID, today, steps)
}
