package domain

import "context"

// LedgerStore is the persistence port owned by the Step Ledger.
// Implementations must enforce uniqueness of (user_id, date) themselves.
type LedgerStore interface {
	// UpsertSteps applies records atomically with last-write-wins by IngestedAt.
	UpsertSteps(ctx context.Context, records []StepRecord) ([]UpsertOutcome, error)
	// DailyTotals returns a user's per-day totals in ascending date order.
	DailyTotals(ctx context.Context, userID string) ([]DailyTotal, error)
	// CohortTotals sums steps per user; users without records are omitted.
	// A nil window means lifetime-to-date.
	CohortTotals(ctx context.Context, userIDs []string, window *Window) (map[string]int64, error)
	// DailyActivity aggregates the cohort per day; days without records are omitted.
	DailyActivity(ctx context.Context, userIDs []string, window Window) ([]DayActivity, error)
	// LedgerUserIDs lists every user that has at least one record.
	LedgerUserIDs(ctx context.Context) ([]string, error)
	// CountEntries returns how many records a user has.
	CountEntries(ctx context.Context, userID string) (int, error)
}

// RegistryStore is the persistence port owned by the League Registry.
// Inserts are conditional: a uniqueness violation must surface as a ConflictError and
// a membership referencing a missing league as a NotFoundError, decided by the store.
type RegistryStore interface {
	InsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (User, error)
	ListUserIDs(ctx context.Context) ([]string, error)

	InsertLeague(ctx context.Context, league League) error
	LeagueExists(ctx context.Context, leagueID string) (bool, error)
	InsertMembership(ctx context.Context, membership Membership) error
	// ListMembers returns player ids in ascending order.
	ListMembers(ctx context.Context, leagueID string) ([]string, error)
	// ListLeaguesOf returns league ids in ascending order.
	ListLeaguesOf(ctx context.Context, userID string) ([]string, error)
}
