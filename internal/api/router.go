// Package api exposes the HTTP boundary: the ingestion endpoint used by phone automations
// and the league API behind bearer authentication.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrisnesbitt427/steplotto/internal/auth"
	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ingest"
	"github.com/chrisnesbitt427/steplotto/internal/lottery"
	httptransport "github.com/chrisnesbitt427/steplotto/internal/transport/http"
)

// Ingester applies raw submissions.
type Ingester interface {
	Ingest(ctx context.Context, body []byte) (ingest.Result, error)
}

// Registry manages users, leagues, and memberships.
type Registry interface {
	RegisterUser(ctx context.Context, userID, firstName, lastName string) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	CreateLeague(ctx context.Context, name, creatorID string) (domain.League, error)
	JoinLeague(ctx context.Context, userID, leagueID string) (domain.Membership, error)
	MembersOf(ctx context.Context, leagueID string) ([]string, error)
	LeaguesOf(ctx context.Context, userID string) ([]string, error)
}

// Lottery answers aggregation queries.
type Lottery interface {
	Leaderboard(ctx context.Context, scope domain.Scope, window domain.Window) ([]domain.Standing, error)
	PotSchedule(ctx context.Context, scope domain.Scope, window domain.Window) ([]domain.PotPeriod, error)
	LeagueOverview(ctx context.Context, leagueID string, window domain.Window) (lottery.LeagueOverview, error)
	PersonalStats(ctx context.Context, userID string) (lottery.PersonalStats, error)
	Stake() domain.Money
}

// SyncChecker counts ledger entries for a user.
type SyncChecker interface {
	CountEntries(ctx context.Context, userID string) (int, error)
}

// Options carries everything the router needs besides the services.
type Options struct {
	Auth           auth.Config
	Calendar       domain.Calendar
	Currency       string
	AllowedOrigins []string
	IngestLimiter  *httptransport.RateLimiter
	Logger         *slog.Logger
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	ingester Ingester
	registry Registry
	lottery  Lottery
	sync     SyncChecker
	opts     Options
	logger   *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(ingester Ingester, registry Registry, lottery Lottery, sync SyncChecker, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &Handler{
		ingester: ingester,
		registry: registry,
		lottery:  lottery,
		sync:     sync,
		opts:     opts,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the complete router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(httptransport.RequestLogger(h.logger))

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	ingestHandler := http.Handler(http.HandlerFunc(h.ingest))
	if h.opts.IngestLimiter != nil {
		ingestHandler = h.opts.IngestLimiter.Wrap(ingestHandler)
	}
	r.Handle("/ingest", ingestHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", httptransport.RequestIDHeader},
			ExposedHeaders:   []string{httptransport.RequestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(auth.NewMiddleware(h.opts.Auth, nil).Wrap)

		r.With(requireScope(auth.ScopeLeaguesWrite)).Post("/users", h.registerUser)
		r.With(requireScope(auth.ScopeLeaguesRead)).Get("/users/{userID}", h.getUser)

		r.Route("/me", func(r chi.Router) {
			r.With(requireScope(auth.ScopeStepsRead)).Get("/sync", h.syncStatus)
			r.With(requireScope(auth.ScopeStepsRead)).Get("/steps", h.personalStats)
			r.With(requireScope(auth.ScopeLeaguesRead)).Get("/leagues", h.myLeagues)
		})

		r.With(requireScope(auth.ScopeLeaguesWrite)).Post("/leagues", h.createLeague)
		r.Route("/leagues/{league}", func(r chi.Router) {
			r.With(requireScope(auth.ScopeLeaguesRead)).Get("/", h.leagueOverview)
			r.With(requireScope(auth.ScopeLeaguesRead)).Get("/members", h.listMembers)
			r.With(requireScope(auth.ScopeLeaguesWrite)).Post("/members", h.joinLeague)
		})

		r.With(requireScope(auth.ScopeLeaguesRead)).Get("/leaderboard", h.leaderboard)
		r.With(requireScope(auth.ScopeLeaguesRead)).Get("/pot", h.pot)
	})

	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			if !claims.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
