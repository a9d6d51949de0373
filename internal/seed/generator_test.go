package seed

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ingest"
	"github.com/chrisnesbitt427/steplotto/internal/ledger"
	"github.com/chrisnesbitt427/steplotto/internal/logging"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/memory"
)

var fixedNow = time.Date(2024, time.March, 5, 23, 30, 0, 0, time.UTC)

func calendar(loc *time.Location) domain.Calendar {
	return domain.Calendar{Location: loc, WeekStart: domain.WeekStartMonday, Now: func() time.Time { return fixedNow }}
}

func TestSampleWeekFormula(t *testing.T) {
	today := domain.NewDate(2024, time.March, 5)
	sub, err := SampleWeek("alice", today)
	require.NoError(t, err)

	records := sub.Records(fixedNow)
	require.Len(t, records, SampleDays)
	require.Equal(t, domain.NewDate(2024, time.February, 28), records[0].Date)
	require.Equal(t, today, records[6].Date)
	// Day offsets 6..0, oldest first.
	want := []int64{11000, 11000, 9500, 8000, 8000, 6500, 5000}
	for i, rec := range records {
		require.Equal(t, want[i], rec.Steps, "record %d", i)
	}
}

func TestRunOnceSubmitsEveryUserWithinRange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	steps := ledger.NewService(store)
	normalizer := ingest.NewNormalizer(steps, logging.Discard())

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	gen, err := NewGenerator(normalizer, []string{"alice", "bob", "carol"}, 3000, 3010, calendar(tokyo),
		WithRand(rand.New(rand.NewPCG(1, 2))), WithLogger(logging.Discard()))
	require.NoError(t, err)

	n, err := gen.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, user := range []string{"alice", "bob", "carol"} {
		totals, err := steps.QueryTotals(ctx, user)
		require.NoError(t, err)
		require.Len(t, totals, 1)
		// 23:30 UTC is already the next day in Tokyo.
		require.Equal(t, domain.NewDate(2024, time.March, 6), totals[0].Date)
		require.GreaterOrEqual(t, totals[0].Steps, int64(3000))
		require.LessOrEqual(t, totals[0].Steps, int64(3010))
	}
}

type flakySubmitter struct {
	fail map[string]bool
	seen []string
}

func (f *flakySubmitter) Submit(_ context.Context, sub ingest.Submission) (ingest.Result, error) {
	f.seen = append(f.seen, sub.Name)
	if f.fail[sub.Name] {
		return ingest.Result{}, domain.StoreError("upsert steps", errors.New("boom"))
	}
	return ingest.Result{UserID: sub.Name}, nil
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	sub := &flakySubmitter{fail: map[string]bool{"bob": true}}
	gen, err := NewGenerator(sub, []string{"alice", "bob", "carol"}, 10, 10, calendar(time.UTC), WithLogger(logging.Discard()))
	require.NoError(t, err)

	n, err := gen.RunOnce(context.Background())
	require.Equal(t, 2, n)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.ErrorContains(t, err, "seed bob")
	require.Equal(t, []string{"alice", "bob", "carol"}, sub.seen)
}

func TestNewGeneratorRejectsBadRange(t *testing.T) {
	_, err := NewGenerator(&flakySubmitter{}, nil, 10, 5, calendar(time.UTC))
	require.Error(t, err)
}

func TestSchedulerParsesSchedule(t *testing.T) {
	gen, err := NewGenerator(&flakySubmitter{}, nil, 0, 1, calendar(time.UTC))
	require.NoError(t, err)

	_, err = NewScheduler(gen, "not a schedule", time.UTC, time.Second, logging.Discard())
	require.Error(t, err)

	s, err := NewScheduler(gen, "0 6 * * *", time.UTC, time.Second, logging.Discard())
	require.NoError(t, err)
	s.Start()
	defer s.Stop()
	next := s.Next()
	require.Equal(t, 6, next.Hour())
	require.Equal(t, 0, next.Minute())
}
