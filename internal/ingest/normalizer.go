package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/observability"
)

// Ledger is the write side of the step ledger used by the Normalizer.
type Ledger interface {
	UpsertBatch(ctx context.Context, records []domain.StepRecord) ([]domain.UpsertOutcome, error)
}

// Result describes an applied submission.
type Result struct {
	UserID   string
	Shape    Shape
	Records  []domain.StepRecord
	Outcomes []domain.UpsertOutcome
}

// Message is the human-readable confirmation returned to submitters.
func (r Result) Message() string {
	if len(r.Records) == 1 {
		return fmt.Sprintf("Data inserted successfully: 1 day recorded for %s (%s)", r.UserID, r.Records[0].Date)
	}
	first, last := r.Records[0].Date, r.Records[len(r.Records)-1].Date
	return fmt.Sprintf("Data inserted successfully: %d days recorded for %s (%s to %s)", len(r.Records), r.UserID, first, last)
}

// Normalizer validates submissions and applies them to the ledger as one unit.
type Normalizer struct {
	ledger Ledger
	now    func() time.Time
	logger *slog.Logger
}

// NewNormalizer constructs a Normalizer. A nil logger falls back to slog.Default.
func NewNormalizer(ledger Ledger, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "ingest"),
	}
}

// WithClock replaces the ingestion clock. It is used by tests and the seeder.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize is the pure half of ingestion: decode and expand body without touching the ledger.
func Normalize(body []byte, ingestedAt time.Time) ([]domain.StepRecord, error) {
	sub, err := Decode(body)
	if err != nil {
		return nil, err
	}
	return sub.Records(ingestedAt), nil
}

// Ingest decodes body and applies it.
func (n *Normalizer) Ingest(ctx context.Context, body []byte) (Result, error) {
	sub, err := Decode(body)
	if err != nil {
		observability.RecordSubmission("unknown", outcomeLabel(err))
		return Result{}, err
	}
	return n.Submit(ctx, sub)
}

// Submit applies an already-decoded submission. Every record shares one ingestion timestamp
// so a resubmission of the same payload replaces, never accumulates.
func (n *Normalizer) Submit(ctx context.Context, sub Submission) (Result, error) {
	if err := sub.Validate(); err != nil {
		observability.RecordSubmission(sub.Shape.String(), outcomeLabel(err))
		return Result{}, err
	}

	records := sub.Records(n.now())
	outcomes, err := n.ledger.UpsertBatch(ctx, records)
	observability.RecordSubmission(sub.Shape.String(), outcomeLabel(err))
	if err != nil {
		n.logger.Warn("submission not applied",
			"user_id", sub.Name,
			"shape", sub.Shape.String(),
			"records", len(records),
			"error", err,
		)
		return Result{}, err
	}

	n.logger.Info("submission applied",
		"user_id", sub.Name,
		"shape", sub.Shape.String(),
		"records", len(records),
		"last_date", sub.Date.String(),
	)
	return Result{UserID: sub.Name, Shape: sub.Shape, Records: records, Outcomes: outcomes}, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.Classify(err).String()
}
