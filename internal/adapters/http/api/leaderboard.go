package api

import (
	"net/http"

	"github.com/okian/elove/pkg/logger"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, logger: logger.Get().Named("leaderboard")}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := queryLimit(r)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
