// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	submissionqueue "github.com/okian/ascent/internal/adapters/mq/queue"
	"github.com/okian/ascent/internal/adapters/repository"
	service "github.com/okian/ascent/internal/app"
	"github.com/okian/ascent/internal/domain/analytics"
	"github.com/okian/ascent/internal/domain/rank"
	"github.com/okian/ascent/internal/domain/replay"
	"github.com/okian/ascent/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmissionDependencies
	UserDependencies
	LeaderboardDependencies
	BoardRankDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submissionsHandler *SubmissionsHandler
	usersHandler       *UsersHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		submissionsHandler: NewSubmissionsHandler(deps),
		usersHandler:       NewUsersHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/submissions", MetricsMiddleware(s.submissionsHandler.HandlePostSubmission, "submissions"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleUsers, "users"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
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

// writeDomainError translates domain sentinels into HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, types.ErrInvalidWeekKey), errors.Is(err, types.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, rank.ErrNoActiveMetrics):
		writeError(w, http.StatusUnprocessableEntity, "no_active_metrics", err)
	case errors.Is(err, replay.ErrRegenerationInProgress):
		writeError(w, http.StatusConflict, "regeneration_in_progress", err)
	case errors.Is(err, submissionqueue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// Compile-time check that the app service satisfies the handler contract.
var _ Dependencies = (*service.Service)(nil)

// UserDependencies covers the per-user read/write operations.
type UserDependencies interface {
	UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) (types.MetricDefinition, error)
	GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error)
	ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error)
	GetState(ctx context.Context, userID string) (types.RankState, error)
	ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error)
	Summary(ctx context.Context, userID string) (service.Summary, error)
	Insights(ctx context.Context, userID string) (analytics.Insights, error)
	Regenerate(ctx context.Context, userID string) (replay.Result, error)
}
