// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/okian/elove/internal/adapters/http/swagger"
	service "github.com/okian/elove/internal/app"
	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/model"
	"github.com/okian/elove/internal/domain/rating"
	"github.com/okian/elove/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	SeenAndRecord(ctx context.Context, key string) bool
	Unrecord(ctx context.Context, key string)

	CreateParticipant(ctx context.Context, in service.NewParticipant) (service.Profile, error)
	GetParticipant(ctx context.Context, id string) (service.Profile, error)
	ListParticipants(ctx context.Context) ([]service.Profile, error)

	RecordInteractionAndResolve(ctx context.Context, req service.RatingRequest) (service.RatingOutcome, error)
	PreviewRating(ctx context.Context, req service.RatingRequest) (service.Preview, error)
	ComputeRatingUpdate(fromScore, toScore float64, value int, isPositive bool) (rating.Result, error)

	Discover(ctx context.Context, id string) ([]service.Profile, error)
	Stats(ctx context.Context, id string) (service.ParticipantStats, error)
	History(ctx context.Context, id string, limit int) ([]model.HistoryEntry, error)
	Matches(ctx context.Context, id string) ([]service.MatchView, error)

	Leaderboard(ctx context.Context, limit int) ([]model.RankedParticipant, error)
	Summary(ctx context.Context) (model.Summary, error)

	Ready() bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	healthHandler      *HealthHandler
	participantHandler *ParticipantHandler
	ratingHandler      *RatingHandler
	leaderboardHandler *LeaderboardHandler
	statsHandler       *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		deps:               deps,
		healthHandler:      NewHealthHandler(deps),
		participantHandler: NewParticipantHandler(deps),
		ratingHandler:      NewRatingHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		statsHandler:       NewStatsHandler(deps),
	}
}

// Routes returns the chi router with every endpoint attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	swagger.Register(r)

	r.Route("/participants", func(r chi.Router) {
		r.Post("/", s.participantHandler.HandleCreate)
		r.Get("/", s.participantHandler.HandleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.participantHandler.HandleGet)
			r.Get("/discover", s.participantHandler.HandleDiscover)
			r.Get("/stats", s.participantHandler.HandleStats)
			r.Get("/history", s.participantHandler.HandleHistory)
			r.Get("/matches", s.participantHandler.HandleMatches)
		})
	})

	r.Post("/ratings", s.ratingHandler.HandleRecord)
	r.Post("/ratings/preview", s.ratingHandler.HandlePreview)
	r.Post("/ratings/compute", s.ratingHandler.HandleCompute)

	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", errors.New("method not allowed"))
	})
	return r
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

// respondError maps an error kind to a status code. Storage failures are
// logged and reported without internals.
func respondError(ctx context.Context, w http.ResponseWriter, l logger.Logger, err error) {
	switch errs.KindOf(err) {
	case errs.ErrValidation:
		writeError(w, http.StatusBadRequest, "validation_error", err)
	case errs.ErrNotFound:
		writeError(w, http.StatusNotFound, "not_found", err)
	case errs.ErrConflict:
		writeError(w, http.StatusConflict, "conflict", err)
	case errs.ErrDuplicate:
		writeError(w, http.StatusConflict, "duplicate", err)
	default:
		l.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// queryLimit parses ?limit=; absent means zero so the service picks its default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errs.WrapKind("api.limit", errs.ErrValidation, ErrBadRequest)
	}
	return n, nil
}
