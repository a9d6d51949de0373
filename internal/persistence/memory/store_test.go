package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

func day(d int) domain.Date { return domain.NewDate(2024, time.January, d) }

func TestUpsertStepsReplacesByIngestionTime(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	t0 := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

	out, err := store.UpsertSteps(ctx, []domain.StepRecord{{UserID: "alice", Date: day(10), Steps: 500, IngestedAt: t0}})
	require.NoError(t, err)
	require.Nil(t, out[0].Previous)

	out, err = store.UpsertSteps(ctx, []domain.StepRecord{{UserID: "alice", Date: day(10), Steps: 300, IngestedAt: t0.Add(time.Minute)}})
	require.NoError(t, err)
	require.NotNil(t, out[0].Previous)
	require.EqualValues(t, 500, *out[0].Previous)
	require.True(t, out[0].Decreased())

	// An older ingestion must not overwrite a newer one.
	out, err = store.UpsertSteps(ctx, []domain.StepRecord{{UserID: "alice", Date: day(10), Steps: 9999, IngestedAt: t0}})
	require.NoError(t, err)
	require.True(t, out[0].Stale)

	totals, err := store.DailyTotals(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []domain.DailyTotal{{Date: day(10), Steps: 300}}, totals)

	n, err := store.CountEntries(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCohortQueries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	_, err := store.UpsertSteps(ctx, []domain.StepRecord{
		{UserID: "a", Date: day(8), Steps: 100, IngestedAt: now},
		{UserID: "a", Date: day(9), Steps: 200, IngestedAt: now},
		{UserID: "b", Date: day(9), Steps: 300, IngestedAt: now},
		{UserID: "c", Date: day(1), Steps: 50, IngestedAt: now},
	})
	require.NoError(t, err)

	lifetime, err := store.CohortTotals(ctx, []string{"a", "b", "z"}, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 300, "b": 300}, lifetime)

	window, err := domain.NewWindow(day(9), day(15))
	require.NoError(t, err)
	windowed, err := store.CohortTotals(ctx, []string{"a", "b", "c"}, &window)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 200, "b": 300}, windowed)

	activity, err := store.DailyActivity(ctx, []string{"a", "b"}, domain.Window{Start: day(8), End: day(9)})
	require.NoError(t, err)
	require.Equal(t, []domain.DayActivity{
		{Date: day(8), TotalSteps: 100, ActivePlayers: 1},
		{Date: day(9), TotalSteps: 500, ActivePlayers: 2},
	}, activity)

	ids, err := store.LedgerUserIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRegistryConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.InsertUser(ctx, domain.User{UserID: "u1"}))
	require.ErrorIs(t, store.InsertUser(ctx, domain.User{UserID: "u1"}), domain.ErrConflict)

	_, err := store.GetUser(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.InsertLeague(ctx, domain.League{LeagueID: "Alpha"}))
	require.ErrorIs(t, store.InsertLeague(ctx, domain.League{LeagueID: "Alpha"}), domain.ErrConflict)
	require.NoError(t, store.InsertLeague(ctx, domain.League{LeagueID: "alpha"}))

	require.ErrorIs(t, store.InsertMembership(ctx, domain.Membership{PlayerID: "u1", LeagueID: "Beta"}), domain.ErrNotFound)
	require.NoError(t, store.InsertMembership(ctx, domain.Membership{PlayerID: "u1", LeagueID: "alpha"}))
	require.NoError(t, store.InsertMembership(ctx, domain.Membership{PlayerID: "u1", LeagueID: "Alpha"}))
	require.ErrorIs(t, store.InsertMembership(ctx, domain.Membership{PlayerID: "u1", LeagueID: "Alpha"}), domain.ErrConflict)
	require.NoError(t, store.InsertMembership(ctx, domain.Membership{PlayerID: "u0", LeagueID: "Alpha"}))

	members, err := store.ListMembers(ctx, "Alpha")
	require.NoError(t, err)
	require.Equal(t, []string{"u0", "u1"}, members)

	leagues, err := store.ListLeaguesOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"Alpha", "alpha"}, leagues)
}

func TestCancelledContextIsStoreUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().CohortTotals(ctx, []string{"a"}, nil)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
