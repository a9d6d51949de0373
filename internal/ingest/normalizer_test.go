package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ledger"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/memory"
)

func newTestNormalizer(clock func() time.Time) (*Normalizer, *ledger.Service) {
	svc := ledger.NewService(memory.NewStore())
	return NewNormalizer(svc, nil).WithClock(clock), svc
}

func TestIngestSamePayloadTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, time.January, 10, 20, 0, 0, 0, time.UTC)
	n, svc := newTestNormalizer(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	})

	body := []byte(`{"name":"alice","steps":[100,200,300],"date":"2024-01-10"}`)
	res, err := n.Ingest(ctx, body)
	require.NoError(t, err)
	require.Equal(t, "alice", res.UserID)
	require.Len(t, res.Records, 3)
	require.Equal(t, res.Records[0].IngestedAt, res.Records[2].IngestedAt)
	require.Equal(t, "Data inserted successfully: 3 days recorded for alice (2024-01-08 to 2024-01-10)", res.Message())

	once, err := svc.QueryTotals(ctx, "alice")
	require.NoError(t, err)

	_, err = n.Ingest(ctx, body)
	require.NoError(t, err)
	twice, err := svc.QueryTotals(ctx, "alice")
	require.NoError(t, err)

	require.Equal(t, once, twice)
	totals, err := svc.QueryCohortTotals(ctx, []string{"alice"})
	require.NoError(t, err)
	require.EqualValues(t, 600, totals["alice"])
}

func TestIngestOverlappingBackfillReplaces(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, time.January, 10, 20, 0, 0, 0, time.UTC)
	n, svc := newTestNormalizer(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	})

	_, err := n.Ingest(ctx, []byte(`{"name":"alice","steps":[100,200,300],"date":"2024-01-10"}`))
	require.NoError(t, err)
	res, err := n.Ingest(ctx, []byte(`{"name":"alice","steps":250,"date":"2024-01-09"}`))
	require.NoError(t, err)
	require.Equal(t, "Data inserted successfully: 1 day recorded for alice (2024-01-09)", res.Message())

	totals, err := svc.QueryTotals(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []domain.DailyTotal{
		{Date: domain.NewDate(2024, time.January, 8), Steps: 100},
		{Date: domain.NewDate(2024, time.January, 9), Steps: 250},
		{Date: domain.NewDate(2024, time.January, 10), Steps: 300},
	}, totals)
}

func TestIngestValidationDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	n, svc := newTestNormalizer(time.Now)

	_, err := n.Ingest(ctx, []byte(`{"name":"alice","steps":[1,-1],"date":"2024-01-10"}`))
	require.ErrorIs(t, err, domain.ErrValidation)

	count, err := svc.CountEntries(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIngestSurfacesStoreFailures(t *testing.T) {
	n := NewNormalizer(failingLedger{err: domain.StoreError("upsert steps", errors.New("down"))}, nil)

	_, err := n.Ingest(context.Background(), []byte(`{"name":"alice","steps":1,"date":"2024-01-10"}`))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

type failingLedger struct{ err error }

func (f failingLedger) UpsertBatch(context.Context, []domain.StepRecord) ([]domain.UpsertOutcome, error) {
	return nil, f.err
}
