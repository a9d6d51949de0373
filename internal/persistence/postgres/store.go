// Package postgres implements the ledger and registry ports on Postgres through pgx. Row
// changes and their outbox events are written in one transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/events"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Store provides Postgres-backed persistence for step records, users, leagues, memberships,
// and outbox events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ domain.LedgerStore   = (*Store)(nil)
	_ domain.RegistryStore = (*Store)(nil)
)

const upsertStep = `WITH prev AS (
        SELECT steps FROM step_records WHERE user_id = $1 AND day = $2 FOR UPDATE
    ), ins AS (
        INSERT INTO step_records (user_id, day, steps, ingested_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, day) DO UPDATE
            SET steps = EXCLUDED.steps, ingested_at = EXCLUDED.ingested_at
            WHERE step_records.ingested_at <= EXCLUDED.ingested_at
        RETURNING 1
    )
    SELECT (SELECT steps FROM prev), EXISTS (SELECT 1 FROM ins)`

// UpsertSteps replaces or inserts every record in a single transaction. A record whose
// ingested_at is older than the stored one is left untouched and reported as stale.
func (s *Store) UpsertSteps(ctx context.Context, records []domain.StepRecord) (outcomes []domain.UpsertOutcome, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.StoreError("upsert steps", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	outcomes = make([]domain.UpsertOutcome, 0, len(records))
	for _, rec := range records {
		var previous *int64
		var applied bool
		if err = tx.QueryRow(ctx, upsertStep, rec.UserID, rec.Date.Time(), rec.Steps, rec.IngestedAt).Scan(&previous, &applied); err != nil {
			return nil, classify("upsert steps", err, nil)
		}

		outcome := domain.UpsertOutcome{Record: rec, Previous: previous, Stale: !applied}
		if applied {
			if err = s.recordStepsEvent(ctx, tx, outcome); err != nil {
				return nil, domain.StoreError("record outbox event", err)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, domain.StoreError("commit steps", err)
	}
	return outcomes, nil
}

func (s *Store) recordStepsEvent(ctx context.Context, tx pgx.Tx, o domain.UpsertOutcome) error {
	rec := o.Record
	date := rec.Date.String()
	return insertOutbox(ctx, tx, events.TypeStepsRecorded, rec.UserID+":"+date, rec.UserID,
		fmt.Sprintf("%s:%s:%d", rec.UserID, date, rec.IngestedAt.UnixNano()),
		events.StepsRecorded{
			UserID:        rec.UserID,
			Date:          date,
			Steps:         rec.Steps,
			PreviousSteps: o.Previous,
			IngestedAt:    rec.IngestedAt,
		})
}

func (s *Store) DailyTotals(ctx context.Context, userID string) ([]domain.DailyTotal, error) {
	const query = `SELECT day, steps FROM step_records WHERE user_id = $1 ORDER BY day`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, domain.StoreError("daily totals", err)
	}
	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DailyTotal, error) {
		var day time.Time
		var total domain.DailyTotal
		if err := row.Scan(&day, &total.Steps); err != nil {
			return total, err
		}
		total.Date = domain.DateOf(day, time.UTC)
		return total, nil
	})
	if err != nil {
		return nil, domain.StoreError("daily totals", err)
	}
	return totals, nil
}

func (s *Store) CohortTotals(ctx context.Context, userIDs []string, window *domain.Window) (map[string]int64, error) {
	query := `SELECT user_id, SUM(steps)::BIGINT FROM step_records WHERE user_id = ANY($1)`
	args := []any{userIDs}
	if window != nil {
		query += ` AND day BETWEEN $2 AND $3`
		args = append(args, window.Start.Time(), window.End.Time())
	}
	query += ` GROUP BY user_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("cohort totals", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var userID string
		var sum int64
		if err := rows.Scan(&userID, &sum); err != nil {
			return nil, domain.StoreError("cohort totals", err)
		}
		totals[userID] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("cohort totals", err)
	}
	return totals, nil
}

func (s *Store) DailyActivity(ctx context.Context, userIDs []string, window domain.Window) ([]domain.DayActivity, error) {
	const query = `SELECT day, SUM(steps)::BIGINT, COUNT(DISTINCT user_id)
        FROM step_records
        WHERE user_id = ANY($1) AND day BETWEEN $2 AND $3
        GROUP BY day
        ORDER BY day`

	rows, err := s.pool.Query(ctx, query, userIDs, window.Start.Time(), window.End.Time())
	if err != nil {
		return nil, domain.StoreError("daily activity", err)
	}
	activity, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DayActivity, error) {
		var day time.Time
		var a domain.DayActivity
		if err := row.Scan(&day, &a.TotalSteps, &a.ActivePlayers); err != nil {
			return a, err
		}
		a.Date = domain.DateOf(day, time.UTC)
		return a, nil
	})
	if err != nil {
		return nil, domain.StoreError("daily activity", err)
	}
	return activity, nil
}

func (s *Store) LedgerUserIDs(ctx context.Context) ([]string, error) {
	return s.strings(ctx, "ledger users", `SELECT DISTINCT user_id FROM step_records ORDER BY user_id COLLATE "C"`)
}

func (s *Store) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM step_records WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, domain.StoreError("count entries", err)
	}
	return n, nil
}

func (s *Store) InsertUser(ctx context.Context, user domain.User) error {
	const stmt = `INSERT INTO users (user_id, first_name, last_name, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, stmt, user.UserID, user.FirstName, user.LastName, user.CreatedAt); err != nil {
		return classify("insert user", err, map[string]error{
			codeUniqueViolation: domain.UserExists(user.UserID),
		})
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	const query = `SELECT user_id, first_name, last_name, created_at FROM users WHERE user_id = $1`

	var user domain.User
	err := s.pool.QueryRow(ctx, query, userID).Scan(&user.UserID, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NoSuchUser(userID)
		}
		return domain.User{}, domain.StoreError("get user", err)
	}
	return user, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.strings(ctx, "list users", `SELECT user_id FROM users ORDER BY user_id COLLATE "C"`)
}

// InsertLeague relies on the primary key to arbitrate concurrent creates.
func (s *Store) InsertLeague(ctx context.Context, league domain.League) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StoreError("insert league", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO leagues (league_id, created_by, created_at) VALUES ($1, $2, $3)`
	if _, err = tx.Exec(ctx, stmt, league.LeagueID, league.CreatedBy, league.CreatedAt); err != nil {
		return classify("insert league", err, map[string]error{
			codeUniqueViolation: domain.LeagueExists(league.LeagueID),
		})
	}

	if err = insertOutbox(ctx, tx, events.TypeLeagueCreated, league.LeagueID, league.LeagueID, "league:"+league.LeagueID,
		events.LeagueCreated{LeagueID: league.LeagueID, CreatedBy: league.CreatedBy, CreatedAt: league.CreatedAt},
	); err != nil {
		return domain.StoreError("record outbox event", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.StoreError("commit league", err)
	}
	return nil
}

func (s *Store) LeagueExists(ctx context.Context, leagueID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leagues WHERE league_id = $1)`, leagueID).Scan(&exists); err != nil {
		return false, domain.StoreError("league exists", err)
	}
	return exists, nil
}

// InsertMembership maps the primary key to "already a member" and the league foreign key to
// "no such league".
func (s *Store) InsertMembership(ctx context.Context, membership domain.Membership) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StoreError("insert membership", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO league_memberships (player_id, league_id, joined_at) VALUES ($1, $2, $3)`
	if _, err = tx.Exec(ctx, stmt, membership.PlayerID, membership.LeagueID, membership.JoinedAt); err != nil {
		return classify("insert membership", err, map[string]error{
			codeUniqueViolation:     domain.AlreadyMember(membership.PlayerID, membership.LeagueID),
			codeForeignKeyViolation: domain.NoSuchLeague(membership.LeagueID),
		})
	}

	if err = insertOutbox(ctx, tx, events.TypeLeagueMemberJoined, membership.LeagueID, membership.LeagueID,
		"member:"+membership.LeagueID+":"+membership.PlayerID,
		events.LeagueMemberJoined{LeagueID: membership.LeagueID, PlayerID: membership.PlayerID, JoinedAt: membership.JoinedAt},
	); err != nil {
		return domain.StoreError("record outbox event", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.StoreError("commit membership", err)
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, leagueID string) ([]string, error) {
	return s.strings(ctx, "list members",
		`SELECT player_id FROM league_memberships WHERE league_id = $1 ORDER BY player_id COLLATE "C"`, leagueID)
}

func (s *Store) ListLeaguesOf(ctx context.Context, userID string) ([]string, error) {
	return s.strings(ctx, "list leagues",
		`SELECT league_id FROM league_memberships WHERE player_id = $1 ORDER BY league_id COLLATE "C"`, userID)
}

func (s *Store) strings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError(op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.StoreError(op, err)
	}
	return out, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, partitionKey, dedupeKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	route, ok := events.Routes[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		route.AggregateType,
		aggregateID,
		eventType,
		route.Topic,
		route.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// classify maps constraint violations to domain errors; anything else is StoreUnavailable.
func classify(op string, err error, byCode map[string]error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := byCode[pgErr.Code]; ok {
			return mapped
		}
		if pgErr.Code == codeCheckViolation {
			return domain.Invalid(pgErr.ColumnName, "violates %s", pgErr.ConstraintName)
		}
	}
	return domain.StoreError(op, err)
}
