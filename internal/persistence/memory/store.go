// Package memory provides an in-process store with the same semantics as the Postgres store.
// It backs local development (STORE_DRIVER=memory) and unit tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

type stepKey struct {
	userID string
	date   domain.Date
}

type membershipKey struct {
	playerID string
	leagueID string
}

// Store keeps every record kind in maps guarded by a single RWMutex.
type Store struct {
	mu          sync.RWMutex
	steps       map[stepKey]domain.StepRecord
	users       map[string]domain.User
	leagues     map[string]domain.League
	memberships map[membershipKey]domain.Membership
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		steps:       make(map[stepKey]domain.StepRecord),
		users:       make(map[string]domain.User),
		leagues:     make(map[string]domain.League),
		memberships: make(map[membershipKey]domain.Membership),
	}
}

var (
	_ domain.LedgerStore   = (*Store)(nil)
	_ domain.RegistryStore = (*Store)(nil)
)

// UpsertSteps applies all records under one lock so the batch is atomic.
func (s *Store) UpsertSteps(ctx context.Context, records []domain.StepRecord) ([]domain.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("upsert steps", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]domain.UpsertOutcome, 0, len(records))
	for _, rec := range records {
		key := stepKey{userID: rec.UserID, date: rec.Date}
		outcome := domain.UpsertOutcome{Record: rec}
		if existing, ok := s.steps[key]; ok {
			prev := existing.Steps
			outcome.Previous = &prev
			if existing.IngestedAt.After(rec.IngestedAt) {
				outcome.Stale = true
				outcomes = append(outcomes, outcome)
				continue
			}
		}
		s.steps[key] = rec
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *Store) DailyTotals(ctx context.Context, userID string) ([]domain.DailyTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("daily totals", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DailyTotal, 0)
	for key, rec := range s.steps {
		if key.userID == userID {
			out = append(out, domain.DailyTotal{Date: rec.Date, Steps: rec.Steps})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) CohortTotals(ctx context.Context, userIDs []string, window *domain.Window) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("cohort totals", err)
	}

	cohort := toSet(userIDs)

	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int64)
	for key, rec := range s.steps {
		if _, ok := cohort[key.userID]; !ok {
			continue
		}
		if window != nil && !window.Contains(key.date) {
			continue
		}
		totals[key.userID] += rec.Steps
	}
	return totals, nil
}

func (s *Store) DailyActivity(ctx context.Context, userIDs []string, window domain.Window) ([]domain.DayActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("daily activity", err)
	}

	cohort := toSet(userIDs)

	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[domain.Date]*domain.DayActivity)
	for key, rec := range s.steps {
		if _, ok := cohort[key.userID]; !ok || !window.Contains(key.date) {
			continue
		}
		day, ok := byDay[key.date]
		if !ok {
			day = &domain.DayActivity{Date: key.date}
			byDay[key.date] = day
		}
		day.TotalSteps += rec.Steps
		day.ActivePlayers++
	}

	out := make([]domain.DayActivity, 0, len(byDay))
	for _, day := range byDay {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) LedgerUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("ledger users", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range s.steps {
		seen[key.userID] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (s *Store) CountEntries(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.StoreError("count entries", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.steps {
		if key.userID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) InsertUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("insert user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.UserID]; ok {
		return domain.UserExists(user.UserID)
	}
	s.users[user.UserID] = user
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, domain.StoreError("get user", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.NoSuchUser(userID)
	}
	return user, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("list users", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.users))
	for id := range s.users {
		ids[id] = struct{}{}
	}
	return sortedKeys(ids), nil
}

func (s *Store) InsertLeague(ctx context.Context, league domain.League) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("insert league", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leagues[league.LeagueID]; ok {
		return domain.LeagueExists(league.LeagueID)
	}
	s.leagues[league.LeagueID] = league
	return nil
}

func (s *Store) LeagueExists(ctx context.Context, leagueID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.StoreError("league exists", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.leagues[leagueID]
	return ok, nil
}

func (s *Store) InsertMembership(ctx context.Context, membership domain.Membership) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("insert membership", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leagues[membership.LeagueID]; !ok {
		return domain.NoSuchLeague(membership.LeagueID)
	}
	key := membershipKey{playerID: membership.PlayerID, leagueID: membership.LeagueID}
	if _, ok := s.memberships[key]; ok {
		return domain.AlreadyMember(membership.PlayerID, membership.LeagueID)
	}
	s.memberships[key] = membership
	return nil
}

func (s *Store) ListMembers(ctx context.Context, leagueID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("list members", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{})
	for key := range s.memberships {
		if key.leagueID == leagueID {
			ids[key.playerID] = struct{}{}
		}
	}
	return sortedKeys(ids), nil
}

func (s *Store) ListLeaguesOf(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("list leagues", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{})
	for key := range s.memberships {
		if key.playerID == userID {
			ids[key.leagueID] = struct{}{}
		}
	}
	return sortedKeys(ids), nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
