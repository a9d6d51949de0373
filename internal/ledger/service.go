// Package ledger owns the canonical per-user-per-day step records. Every aggregation reads
// through it; every ingestion writes through it.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/observability"
)

// DefaultTimeout bounds a store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithTimeout overrides the per-call store timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithChunkSize splits batches into store calls of at most n records. Zero applies a batch
// in one call.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.chunkSize = n
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service applies replace-or-insert writes and answers the grouping queries.
type Service struct {
	store     domain.LedgerStore
	timeout   time.Duration
	chunkSize int
	logger    *slog.Logger
}

// NewService constructs a Service over store.
func NewService(store domain.LedgerStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ledger")
	return s
}

// Upsert replaces or inserts a single record.
func (s *Service) Upsert(ctx context.Context, record domain.StepRecord) (domain.UpsertOutcome, error) {
	outcomes, err := s.UpsertBatch(ctx, []domain.StepRecord{record})
	if err != nil {
		return domain.UpsertOutcome{}, err
	}
	return outcomes[0], nil
}

// UpsertBatch applies records with replacement semantics. A batch that fails before anything
// is written returns the store's error; a batch that fails after some chunks were committed
// returns a *domain.PartialBatchError naming both halves.
func (s *Service) UpsertBatch(ctx context.Context, records []domain.StepRecord) ([]domain.UpsertOutcome, error) {
	if len(records) == 0 {
		return nil, nil
	}
	for _, rec := range records {
		if err := validateRecord(rec); err != nil {
			return nil, err
		}
	}

	outcomes := make([]domain.UpsertOutcome, 0, len(records))
	for _, chunk := range s.chunks(records) {
		applied, err := s.upsertChunk(ctx, chunk)
		if err != nil {
			if len(outcomes) == 0 {
				return nil, err
			}
			return nil, partialFailure(outcomes, records[len(outcomes):], err)
		}
		outcomes = append(outcomes, applied...)
	}

	s.observe(outcomes)
	return outcomes, nil
}

func (s *Service) upsertChunk(ctx context.Context, chunk []domain.StepRecord) ([]domain.UpsertOutcome, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	outcomes, err := s.store.UpsertSteps(callCtx, chunk)
	if err != nil {
		return nil, s.storeError("upsert steps", err)
	}
	return outcomes, nil
}

func (s *Service) chunks(records []domain.StepRecord) [][]domain.StepRecord {
	if s.chunkSize <= 0 || len(records) <= s.chunkSize {
		return [][]domain.StepRecord{records}
	}
	out := make([][]domain.StepRecord, 0, (len(records)+s.chunkSize-1)/s.chunkSize)
	for start := 0; start < len(records); start += s.chunkSize {
		end := min(start+s.chunkSize, len(records))
		out = append(out, records[start:end])
	}
	return out
}

func partialFailure(applied []domain.UpsertOutcome, failed []domain.StepRecord, cause error) error {
	perr := &domain.PartialBatchError{
		Applied: make([]domain.StepRecord, 0, len(applied)),
		Failed:  make([]domain.FailedRecord, 0, len(failed)),
	}
	for _, o := range applied {
		perr.Applied = append(perr.Applied, o.Record)
	}
	for _, rec := range failed {
		perr.Failed = append(perr.Failed, domain.FailedRecord{Record: rec, Err: cause})
	}
	return perr
}

func (s *Service) observe(outcomes []domain.UpsertOutcome) {
	written := 0
	var latest time.Time
	for _, o := range outcomes {
		switch {
		case o.Stale:
			observability.RecordStaleWrite()
			s.logger.Warn("stale step record skipped", "user_id", o.Record.UserID, "date", o.Record.Date.String())
			continue
		case o.Decreased():
			observability.RecordStepDecrease()
			s.logger.Info("step count lowered by re-ingestion",
				"user_id", o.Record.UserID,
				"date", o.Record.Date.String(),
				"previous", *o.Previous,
				"steps", o.Record.Steps,
			)
		}
		written++
		if o.Record.IngestedAt.After(latest) {
			latest = o.Record.IngestedAt
		}
	}
	observability.RecordStepsApplied(written, latest)
}

// QueryTotals returns one user's per-day totals in ascending date order.
func (s *Service) QueryTotals(ctx context.Context, userID string) ([]domain.DailyTotal, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	totals, err := s.store.DailyTotals(callCtx, userID)
	if err != nil {
		return nil, s.storeError("daily totals", err)
	}
	return totals, nil
}

// QueryCohortTotals returns lifetime-to-date totals for every user in userIDs. Users with
// no records are present with zero.
func (s *Service) QueryCohortTotals(ctx context.Context, userIDs []string) (map[string]int64, error) {
	return s.cohortTotals(ctx, userIDs, nil)
}

// QueryCohortTotalsInWindow restricts QueryCohortTotals to records dated inside window.
func (s *Service) QueryCohortTotalsInWindow(ctx context.Context, userIDs []string, window domain.Window) (map[string]int64, error) {
	return s.cohortTotals(ctx, userIDs, &window)
}

func (s *Service) cohortTotals(ctx context.Context, userIDs []string, window *domain.Window) (map[string]int64, error) {
	out := make(map[string]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	totals, err := s.store.CohortTotals(callCtx, userIDs, window)
	if err != nil {
		return nil, s.storeError("cohort totals", err)
	}
	for _, id := range userIDs {
		out[id] = totals[id]
	}
	return out, nil
}

// DailyActivity returns per-day participation for the cohort inside window. Days without
// any record are omitted.
func (s *Service) DailyActivity(ctx context.Context, userIDs []string, window domain.Window) ([]domain.DayActivity, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	activity, err := s.store.DailyActivity(callCtx, userIDs, window)
	if err != nil {
		return nil, s.storeError("daily activity", err)
	}
	return activity, nil
}

// UserIDs lists every user that appears in the ledger.
func (s *Service) UserIDs(ctx context.Context) ([]string, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	ids, err := s.store.LedgerUserIDs(callCtx)
	if err != nil {
		return nil, s.storeError("ledger users", err)
	}
	return ids, nil
}

// CountEntries returns how many days a user has recorded.
func (s *Service) CountEntries(ctx context.Context, userID string) (int, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	n, err := s.store.CountEntries(callCtx, userID)
	if err != nil {
		return 0, s.storeError("count entries", err)
	}
	return n, nil
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) storeError(op string, err error) error {
	classified := domain.StoreError(op, err)
	if domain.Classify(classified) == domain.KindStoreUnavailable {
		observability.RecordStoreUnavailable(op)
		s.logger.Error("store call failed", "operation", op, "error", err)
	}
	return classified
}

func validateRecord(rec domain.StepRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return domain.Invalid("user_id", "is required")
	}
	if rec.Date.IsZero() {
		return domain.Invalid("date", "is required")
	}
	if rec.Steps < 0 {
		return domain.Invalid("steps", "must not be negative, got %d", rec.Steps)
	}
	return nil
}
