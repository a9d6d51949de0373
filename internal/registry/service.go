// Package registry owns users, leagues, and memberships. Uniqueness is decided by the store's
// constraints; the service never pre-checks before inserting.
package registry

import (
	"context"
	"errors"
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

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for created_at and joined_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service implements league creation and membership.
type Service struct {
	store   domain.RegistryStore
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewService constructs a Service over store.
func NewService(store domain.RegistryStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		timeout: DefaultTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "registry")
	return s
}

// RegisterUser creates a user. Registering an existing user id is a conflict.
func (s *Service) RegisterUser(ctx context.Context, userID, firstName, lastName string) (domain.User, error) {
	user := domain.User{
		UserID:    strings.TrimSpace(userID),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		CreatedAt: s.now(),
	}
	if user.UserID == "" {
		return domain.User{}, s.record("register_user", domain.Invalid("user_id", "is required"))
	}

	callCtx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.store.InsertUser(callCtx, user); err != nil {
		return domain.User{}, s.record("register_user", domain.StoreError("insert user", err))
	}

	s.record("register_user", nil)
	s.logger.Info("user registered", "user_id", user.UserID)
	return user, nil
}

// GetUser loads a registered user.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	user, err := s.store.GetUser(callCtx, strings.TrimSpace(userID))
	if err != nil {
		return domain.User{}, domain.StoreError("get user", err)
	}
	return user, nil
}

// UserIDs lists every registered user id in ascending order.
func (s *Service) UserIDs(ctx context.Context) ([]string, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	ids, err := s.store.ListUserIDs(callCtx)
	if err != nil {
		return nil, domain.StoreError("list users", err)
	}
	return ids, nil
}

// CreateLeague inserts a league named name and makes creatorID its first member. The name is
// trimmed and then compared case-sensitively. When the league row is written but the
// membership is not, the returned error is a *domain.LeagueCreationError.
func (s *Service) CreateLeague(ctx context.Context, name, creatorID string) (domain.League, error) {
	league := domain.League{
		LeagueID:  strings.TrimSpace(name),
		CreatedBy: strings.TrimSpace(creatorID),
		CreatedAt: s.now(),
	}
	if league.LeagueID == "" {
		return domain.League{}, s.record("create_league", domain.Invalid("league_id", "league name must not be empty"))
	}
	if league.CreatedBy == "" {
		return domain.League{}, s.record("create_league", domain.Invalid("creator_id", "is required"))
	}

	if err := s.insertLeague(ctx, league); err != nil {
		return domain.League{}, s.record("create_league", err)
	}

	if _, err := s.JoinLeague(ctx, league.CreatedBy, league.LeagueID); err != nil {
		s.logger.Error("league created but creator membership failed",
			"league_id", league.LeagueID,
			"user_id", league.CreatedBy,
			"error", err,
		)
		return domain.League{}, s.record("create_league", &domain.LeagueCreationError{LeagueID: league.LeagueID, Err: err})
	}

	s.record("create_league", nil)
	s.logger.Info("league created", "league_id", league.LeagueID, "user_id", league.CreatedBy)
	return league, nil
}

func (s *Service) insertLeague(ctx context.Context, league domain.League) error {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()
	return domain.StoreError("insert league", s.store.InsertLeague(callCtx, league))
}

// JoinLeague adds userID to leagueID. It fails with NotFound for an unknown league and with
// Conflict when the membership already exists.
func (s *Service) JoinLeague(ctx context.Context, userID, leagueID string) (domain.Membership, error) {
	membership := domain.Membership{
		PlayerID: strings.TrimSpace(userID),
		LeagueID: strings.TrimSpace(leagueID),
		JoinedAt: s.now(),
	}
	if membership.PlayerID == "" {
		return domain.Membership{}, s.record("join_league", domain.Invalid("user_id", "is required"))
	}
	if membership.LeagueID == "" {
		return domain.Membership{}, s.record("join_league", domain.Invalid("league_id", "is required"))
	}

	callCtx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.store.InsertMembership(callCtx, membership); err != nil {
		return domain.Membership{}, s.record("join_league", domain.StoreError("insert membership", err))
	}

	s.record("join_league", nil)
	return membership, nil
}

// MembersOf lists a league's members in ascending order.
func (s *Service) MembersOf(ctx context.Context, leagueID string) ([]string, error) {
	leagueID = strings.TrimSpace(leagueID)

	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	exists, err := s.store.LeagueExists(callCtx, leagueID)
	if err != nil {
		return nil, domain.StoreError("league exists", err)
	}
	if !exists {
		return nil, domain.NoSuchLeague(leagueID)
	}

	members, err := s.store.ListMembers(callCtx, leagueID)
	if err != nil {
		return nil, domain.StoreError("list members", err)
	}
	return members, nil
}

// LeaguesOf lists the leagues userID belongs to in ascending order.
func (s *Service) LeaguesOf(ctx context.Context, userID string) ([]string, error) {
	callCtx, cancel := s.bounded(ctx)
	defer cancel()

	leagues, err := s.store.ListLeaguesOf(callCtx, strings.TrimSpace(userID))
	if err != nil {
		return nil, domain.StoreError("list leagues", err)
	}
	return leagues, nil
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// record counts the outcome of a mutating operation and returns err unchanged.
func (s *Service) record(op string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = domain.Classify(err).String()
		var creation *domain.LeagueCreationError
		if errors.As(err, &creation) {
			outcome = "membership_failed"
		}
	}
	observability.RecordRegistry(op, outcome)
	return err
}
