package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Generator on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	gen     *Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler registers gen under the five-field cron expression schedule, evaluated in loc.
func NewScheduler(gen *Generator, schedule string, loc *time.Location, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		gen:     gen,
		timeout: timeout,
		logger:  logger.With("component", "seed_scheduler"),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid seed schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.gen.RunOnce(ctx); err != nil {
		s.logger.Warn("scheduled seed run failed", "error", err)
	}
}

// Next reports when the next run is due.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Start begins firing runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("seed scheduler started", "next_run", s.Next())
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("seed scheduler stopped")
}
