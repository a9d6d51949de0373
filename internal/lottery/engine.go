// Package lottery computes leaderboards, win probabilities, and pot schedules. It owns no
// state: every call recomputes from the ledger and registry.
package lottery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/observability"
)

// RecentDays is how many days PersonalStats returns in its recent history.
const RecentDays = 10

// StepSource is the read side of the step ledger.
type StepSource interface {
	QueryTotals(ctx context.Context, userID string) ([]domain.DailyTotal, error)
	QueryCohortTotals(ctx context.Context, userIDs []string) (map[string]int64, error)
	QueryCohortTotalsInWindow(ctx context.Context, userIDs []string, window domain.Window) (map[string]int64, error)
	DailyActivity(ctx context.Context, userIDs []string, window domain.Window) ([]domain.DayActivity, error)
	UserIDs(ctx context.Context) ([]string, error)
}

// Roster resolves cohorts from the league registry.
type Roster interface {
	MembersOf(ctx context.Context, leagueID string) ([]string, error)
	UserIDs(ctx context.Context) ([]string, error)
}

// Engine answers aggregation queries.
type Engine struct {
	steps  StepSource
	roster Roster
	stake  domain.Money
	logger *slog.Logger
}

// NewEngine constructs an Engine. stake is the contribution of each paying player per day.
func NewEngine(steps StepSource, roster Roster, stake domain.Money, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if stake < 0 {
		stake = 0
	}
	return &Engine{steps: steps, roster: roster, stake: stake, logger: logger.With("component", "lottery")}
}

// Stake returns the configured per-player contribution.
func (e *Engine) Stake() domain.Money { return e.stake }

// Cohort resolves scope to a sorted list of user ids. The global cohort is every registered
// user plus every user present in the ledger.
func (e *Engine) Cohort(ctx context.Context, scope domain.Scope) ([]string, error) {
	if !scope.IsGlobal() {
		members, err := e.roster.MembersOf(ctx, scope.LeagueID)
		if err != nil {
			return nil, err
		}
		observability.RecordCohortSize("league", len(members))
		return members, nil
	}

	var registered, recorded []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		registered, err = e.roster.UserIDs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recorded, err = e.steps.UserIDs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cohort := union(registered, recorded)
	observability.RecordCohortSize("global", len(cohort))
	return cohort, nil
}

// Leaderboard ranks every cohort member by steps inside window, members without records
// included at zero.
func (e *Engine) Leaderboard(ctx context.Context, scope domain.Scope, window domain.Window) ([]domain.Standing, error) {
	defer observability.ObserveAggregation("leaderboard", time.Now())

	cohort, err := e.Cohort(ctx, scope)
	if err != nil {
		return nil, err
	}
	totals, err := e.steps.QueryCohortTotalsInWindow(ctx, cohort, window)
	if err != nil {
		return nil, err
	}
	return Rank(totals), nil
}

// PotSchedule returns one PotPeriod per day of window in ascending order.
func (e *Engine) PotSchedule(ctx context.Context, scope domain.Scope, window domain.Window) ([]domain.PotPeriod, error) {
	defer observability.ObserveAggregation("pot_schedule", time.Now())

	cohort, err := e.Cohort(ctx, scope)
	if err != nil {
		return nil, err
	}
	activity, err := e.steps.DailyActivity(ctx, cohort, window)
	if err != nil {
		return nil, err
	}
	return BuildPotSchedule(window, activity, e.stake), nil
}

// LeagueOverview is the league page: lifetime member statistics plus the current window's
// leaderboard and pot.
type LeagueOverview struct {
	LeagueID        string             `json:"league_id"`
	Window          domain.Window      `json:"window"`
	Members         []string           `json:"members"`
	MemberCount     int                `json:"member_count"`
	TotalSteps      int64              `json:"total_steps"`
	AverageSteps    int64              `json:"average_steps"`
	TopPerformer    *domain.Standing   `json:"top_performer,omitempty"`
	ZeroStepMembers []string           `json:"zero_step_members"`
	Leaderboard     []domain.Standing  `json:"leaderboard"`
	Pot             []domain.PotPeriod `json:"pot"`
}

// LeagueOverview loads members once and runs the three aggregations concurrently.
func (e *Engine) LeagueOverview(ctx context.Context, leagueID string, window domain.Window) (LeagueOverview, error) {
	defer observability.ObserveAggregation("league_overview", time.Now())

	members, err := e.Cohort(ctx, domain.LeagueScope(leagueID))
	if err != nil {
		return LeagueOverview{}, err
	}

	var lifetime, windowed map[string]int64
	var activity []domain.DayActivity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lifetime, err = e.steps.QueryCohortTotals(gctx, members)
		return err
	})
	g.Go(func() error {
		var err error
		windowed, err = e.steps.QueryCohortTotalsInWindow(gctx, members, window)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = e.steps.DailyActivity(gctx, members, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return LeagueOverview{}, err
	}

	overview := LeagueOverview{
		LeagueID:        leagueID,
		Window:          window,
		Members:         members,
		MemberCount:     len(members),
		ZeroStepMembers: make([]string, 0),
		Leaderboard:     Rank(windowed),
		Pot:             BuildPotSchedule(window, activity, e.stake),
	}
	lifetimeRanks := Rank(lifetime)
	for _, s := range lifetimeRanks {
		overview.TotalSteps += s.TotalSteps
		if s.TotalSteps == 0 {
			overview.ZeroStepMembers = append(overview.ZeroStepMembers, s.UserID)
		}
	}
	sort.Strings(overview.ZeroStepMembers)
	if len(members) > 0 {
		overview.AverageSteps = overview.TotalSteps / int64(len(members))
	}
	if len(lifetimeRanks) > 0 && lifetimeRanks[0].TotalSteps > 0 {
		top := lifetimeRanks[0]
		overview.TopPerformer = &top
	}
	return overview, nil
}

// PersonalStats summarises one user's history.
type PersonalStats struct {
	UserID       string              `json:"user_id"`
	DaysTracked  int                 `json:"days_tracked"`
	TotalSteps   int64               `json:"total_steps"`
	AverageDaily int64               `json:"average_daily_steps"`
	BestDay      *domain.DailyTotal  `json:"best_day,omitempty"`
	Recent       []domain.DailyTotal `json:"recent"`
	History      []domain.DailyTotal `json:"history"`
}

// PersonalStats builds the dashboard summary from the user's daily totals. The best day is
// the highest count, the earliest such day on ties.
func (e *Engine) PersonalStats(ctx context.Context, userID string) (PersonalStats, error) {
	history, err := e.steps.QueryTotals(ctx, userID)
	if err != nil {
		return PersonalStats{}, err
	}
	return summarize(userID, history), nil
}

func summarize(userID string, history []domain.DailyTotal) PersonalStats {
	stats := PersonalStats{
		UserID:      userID,
		DaysTracked: len(history),
		History:     history,
		Recent:      make([]domain.DailyTotal, 0, RecentDays),
	}
	if len(history) == 0 {
		stats.History = make([]domain.DailyTotal, 0)
		return stats
	}

	best := history[0]
	for _, d := range history {
		stats.TotalSteps += d.Steps
		if d.Steps > best.Steps {
			best = d
		}
	}
	stats.BestDay = &best
	stats.AverageDaily = stats.TotalSteps / int64(len(history))

	start := max(len(history)-RecentDays, 0)
	stats.Recent = append(stats.Recent, history[start:]...)
	return stats
}

func union(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
