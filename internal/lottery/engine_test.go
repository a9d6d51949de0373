package lottery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ledger"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/memory"
	"github.com/chrisnesbitt427/steplotto/internal/registry"
)

func day(d int) domain.Date { return domain.NewDate(2024, time.January, d) }

func week() domain.Window { return domain.Window{Start: day(8), End: day(14)} }

type fixture struct {
	ledger   *ledger.Service
	registry *registry.Service
	engine   *Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	l := ledger.NewService(store)
	r := registry.NewService(store)
	return fixture{ledger: l, registry: r, engine: NewEngine(l, r, 100, nil)}
}

func (f fixture) steps(t *testing.T, user string, d int, steps int64) {
	t.Helper()
	_, err := f.ledger.Upsert(context.Background(), domain.StepRecord{UserID: user, Date: day(d), Steps: steps, IngestedAt: time.Now()})
	require.NoError(t, err)
}

func TestRankProbabilities(t *testing.T) {
	standings := Rank(map[string]int64{"A": 100, "B": 300})
	require.Equal(t, []domain.Standing{
		{Rank: 1, UserID: "B", TotalSteps: 300, WinProbability: 75.0},
		{Rank: 2, UserID: "A", TotalSteps: 100, WinProbability: 25.0},
	}, standings)
}

func TestRankZeroActivity(t *testing.T) {
	standings := Rank(map[string]int64{"b": 0, "a": 0, "c": 0})
	require.Len(t, standings, 3)
	require.Equal(t, "a", standings[0].UserID)
	for _, s := range standings {
		require.Zero(t, s.WinProbability)
	}
	require.Empty(t, Rank(nil))
}

func TestRankTieBreaksByUserID(t *testing.T) {
	standings := Rank(map[string]int64{"carol": 50, "alice": 50, "bob": 70})
	ids := []string{standings[0].UserID, standings[1].UserID, standings[2].UserID}
	require.Equal(t, []string{"bob", "alice", "carol"}, ids)
}

func TestProbabilitiesSumToHundredWithinTolerance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		totals := make(map[string]int64)
		n := 1 + rng.Intn(20)
		for i := 0; i < n; i++ {
			totals[fmt.Sprintf("u%02d", i)] = rng.Int63n(20000)
		}
		totals["anchor"] = 1

		var sum float64
		standings := Rank(totals)
		for _, s := range standings {
			sum += s.WinProbability
		}
		require.LessOrEqual(t, math.Abs(sum-100), 0.1*float64(len(standings))+1e-9)
	}
}

func TestBuildPotScheduleIsMonotonic(t *testing.T) {
	activity := []domain.DayActivity{
		{Date: day(8), TotalSteps: 9000, ActivePlayers: 2},
		{Date: day(10), TotalSteps: 4000, ActivePlayers: 1},
		{Date: day(11), TotalSteps: 12000, ActivePlayers: 3},
	}
	schedule := BuildPotSchedule(week(), activity, 100)
	require.Len(t, schedule, 7)

	var running domain.Money
	for i, p := range schedule {
		require.Equal(t, day(8+i), p.Date)
		running += p.DailyPot
		require.Equal(t, running, p.CumulativePot)
		if i > 0 {
			require.GreaterOrEqual(t, p.CumulativePot, schedule[i-1].CumulativePot)
		}
		require.Equal(t, domain.Money(p.PayingPlayers)*100, p.DailyPot)
	}
	require.Equal(t, domain.Money(600), schedule[6].CumulativePot)
	require.Zero(t, schedule[1].PayingPlayers)
	require.Equal(t, "6.00", schedule[6].CumulativePot.String())
}

func TestLeaderboardForLeagueIncludesIdleMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.CreateLeague(ctx, "Alpha", "A")
	require.NoError(t, err)
	_, err = f.registry.JoinLeague(ctx, "B", "Alpha")
	require.NoError(t, err)
	_, err = f.registry.JoinLeague(ctx, "C", "Alpha")
	require.NoError(t, err)

	f.steps(t, "A", 8, 100)
	f.steps(t, "B", 9, 300)
	f.steps(t, "B", 1, 5000) // outside the window
	f.steps(t, "outsider", 9, 10000)

	board, err := f.engine.Leaderboard(ctx, domain.LeagueScope("Alpha"), week())
	require.NoError(t, err)
	require.Equal(t, []domain.Standing{
		{Rank: 1, UserID: "B", TotalSteps: 300, WinProbability: 75.0},
		{Rank: 2, UserID: "A", TotalSteps: 100, WinProbability: 25.0},
		{Rank: 3, UserID: "C", TotalSteps: 0, WinProbability: 0},
	}, board)

	_, err = f.engine.Leaderboard(ctx, domain.LeagueScope("Nowhere"), week())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGlobalCohortUnionsRegistryAndLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.RegisterUser(ctx, "registered", "R", "U")
	require.NoError(t, err)
	f.steps(t, "walker", 9, 500)

	cohort, err := f.engine.Cohort(ctx, domain.GlobalScope)
	require.NoError(t, err)
	require.Equal(t, []string{"registered", "walker"}, cohort)

	board, err := f.engine.Leaderboard(ctx, domain.GlobalScope, week())
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, 100.0, board[0].WinProbability)
}

func TestEmptyCohortIsNotAnError(t *testing.T) {
	f := newFixture(t)

	board, err := f.engine.Leaderboard(context.Background(), domain.GlobalScope, week())
	require.NoError(t, err)
	require.Empty(t, board)

	pot, err := f.engine.PotSchedule(context.Background(), domain.GlobalScope, week())
	require.NoError(t, err)
	require.Len(t, pot, 7)
	require.Zero(t, pot[6].CumulativePot)
}

func TestPotScheduleCountsDistinctPlayersPerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.steps(t, "a", 8, 100)
	f.steps(t, "b", 8, 200)
	f.steps(t, "a", 9, 0)
	f.steps(t, "a", 8, 150) // replacement, not a second player

	pot, err := f.engine.PotSchedule(ctx, domain.GlobalScope, week())
	require.NoError(t, err)
	require.Equal(t, 2, pot[0].PayingPlayers)
	require.EqualValues(t, 350, pot[0].TotalSteps)
	require.Equal(t, 1, pot[1].PayingPlayers)
	require.Equal(t, domain.Money(300), pot[6].CumulativePot)
}

func TestLeagueOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.CreateLeague(ctx, "Alpha", "amy")
	require.NoError(t, err)
	for _, u := range []string{"ben", "cat"} {
		_, err = f.registry.JoinLeague(ctx, u, "Alpha")
		require.NoError(t, err)
	}
	f.steps(t, "amy", 1, 1000)
	f.steps(t, "amy", 9, 500)
	f.steps(t, "ben", 9, 2000)

	overview, err := f.engine.LeagueOverview(ctx, "Alpha", week())
	require.NoError(t, err)
	require.Equal(t, 3, overview.MemberCount)
	require.EqualValues(t, 3500, overview.TotalSteps)
	require.EqualValues(t, 1166, overview.AverageSteps)
	require.NotNil(t, overview.TopPerformer)
	require.Equal(t, "ben", overview.TopPerformer.UserID)
	require.Equal(t, []string{"cat"}, overview.ZeroStepMembers)
	require.Equal(t, "ben", overview.Leaderboard[0].UserID)
	require.Equal(t, domain.Money(200), overview.Pot[6].CumulativePot)
}

func TestLeagueOverviewWithoutStepsHasNoTopPerformer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.CreateLeague(ctx, "Quiet", "amy")
	require.NoError(t, err)

	overview, err := f.engine.LeagueOverview(ctx, "Quiet", week())
	require.NoError(t, err)
	require.Nil(t, overview.TopPerformer)
	require.Equal(t, []string{"amy"}, overview.ZeroStepMembers)
}

func TestPersonalStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 1; i <= 12; i++ {
		f.steps(t, "amy", i, int64(1000*i))
	}
	f.steps(t, "amy", 3, 12000) // ties the latest day; the earlier day wins

	stats, err := f.engine.PersonalStats(ctx, "amy")
	require.NoError(t, err)
	require.Equal(t, 12, stats.DaysTracked)
	require.EqualValues(t, 87000, stats.TotalSteps)
	require.EqualValues(t, 7250, stats.AverageDaily)
	require.Equal(t, day(3), stats.BestDay.Date)
	require.Len(t, stats.Recent, RecentDays)
	require.Equal(t, day(3), stats.Recent[0].Date)
	require.Equal(t, day(12), stats.Recent[9].Date)

	empty, err := f.engine.PersonalStats(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, empty.DaysTracked)
	require.Nil(t, empty.BestDay)
}

func TestStoreFailuresPropagate(t *testing.T) {
	boom := domain.StoreError("ledger users", errors.New("down"))
	engine := NewEngine(failingSteps{err: boom}, staticRoster{}, 100, nil)

	_, err := engine.Leaderboard(context.Background(), domain.GlobalScope, week())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

type failingSteps struct {
	StepSource
	err error
}

func (f failingSteps) UserIDs(context.Context) ([]string, error) { return nil, f.err }

type staticRoster struct{}

func (staticRoster) MembersOf(context.Context, string) ([]string, error) { return nil, nil }
func (staticRoster) UserIDs(context.Context) ([]string, error)          { return []string{"a"}, nil }
