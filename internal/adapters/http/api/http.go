// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	service "github.com/okian/soprofile/internal/app"
	"github.com/okian/soprofile/internal/domain/model"
	"github.com/okian/soprofile/internal/domain/types"
	"github.com/okian/soprofile/pkg/logger"
)

const defaultCachePeriod = 10 * time.Minute

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ProfileDependencies
	LeagueDependencies
	AnalyticsDependencies
}

// ProfileDependencies renders cards.
type ProfileDependencies interface {
	Profile(ctx context.Context, req service.ProfileRequest) (string, error)
	ErrorCard(err error) string
	Templates() []string
	Themes() []string
}

// LeagueDependencies drives and reads tag leagues.
type LeagueDependencies interface {
	RequestLeague(ctx context.Context, tag string) (model.LeagueRequest, bool, error)
	StopLeague(ctx context.Context, tag string) error
	TopUsers(ctx context.Context, tag string, limit int) ([]types.LeagueEntry, error)
	UserRank(ctx context.Context, tag string, userID int64) (types.LeagueRank, error)
	Percentile(ctx context.Context, tag string, score int) (types.Percentile, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	profileHandler   *ProfileHandler
	analyticsHandler *AnalyticsHandler
	leagueHandler    *LeagueHandler
}

// Option configures the Server.
type Option func(*serverConfig)

type serverConfig struct {
	cachePeriod  time.Duration
	defaultLimit int
	logger       logger.Logger
}

// WithCachePeriod sets the max-age advertised on cards.
func WithCachePeriod(d time.Duration) Option {
	return func(c *serverConfig) {
		if d > 0 {
			c.cachePeriod = d
		}
	}
}

// WithDefaultLimit sets the league size returned when no limit is given.
func WithDefaultLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.defaultLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{cachePeriod: defaultCachePeriod, defaultLimit: 10, logger: logger.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger.Named("api")
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		profileHandler:   NewProfileHandler(deps, cfg.cachePeriod, log),
		analyticsHandler: NewAnalyticsHandler(deps),
		leagueHandler:    NewLeagueHandler(deps, cfg.defaultLimit),
	}
}

// Register attaches all HTTP routes to r. Fixed paths are registered before
// the catch-all card route.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.HandleFunc("/_analytics", MetricsMiddleware(s.analyticsHandler.HandleAnalytics, "analytics")).Methods(http.MethodGet)

	r.HandleFunc("/league/{tag}", MetricsMiddleware(s.leagueHandler.HandleRequest, "league")).Methods(http.MethodPost)
	r.HandleFunc("/league/{tag}", MetricsMiddleware(s.leagueHandler.HandleStop, "league")).Methods(http.MethodDelete)
	r.HandleFunc("/league/{tag}", MetricsMiddleware(s.leagueHandler.HandleTopUsers, "league")).Methods(http.MethodGet)
	r.HandleFunc("/league/{tag}/percentile", MetricsMiddleware(s.leagueHandler.HandlePercentile, "league_percentile")).Methods(http.MethodGet)
	r.HandleFunc("/league/{tag}/users/{id}", MetricsMiddleware(s.leagueHandler.HandleUserRank, "league_user")).Methods(http.MethodGet)

	r.HandleFunc("/{template}/{id}", MetricsMiddleware(s.profileHandler.HandleProfile, "profile")).Methods(http.MethodGet)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and API error kinds to a status.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidTag),
		errors.Is(err, service.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, ErrNotFound),
		errors.Is(err, service.ErrNotRunning),
		errors.Is(err, service.ErrNotRanked):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
