package api

import (
	"net/http"

	"github.com/okian/elove/pkg/logger"
)

// StatsHandler serves the population summary.
type StatsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies) *StatsHandler {
	return &StatsHandler{deps: deps, logger: logger.Get().Named("stats")}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Summary(r.Context())
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
