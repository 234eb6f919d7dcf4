package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/elove/internal/app"
	"github.com/okian/elove/pkg/logger"
)

// ParticipantHandler serves participant resources and their derived views.
type ParticipantHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewParticipantHandler creates a new participant handler.
func NewParticipantHandler(deps Dependencies) *ParticipantHandler {
	return &ParticipantHandler{deps: deps, logger: logger.Get().Named("participants")}
}

type createParticipantRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Age  int    `json:"age" validate:"required,gte=18,lte=120"`
	Bio  string `json:"bio" validate:"max=500"`
}

// HandleCreate handles POST /participants.
func (h *ParticipantHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[createParticipantRequest](r)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	p, err := h.deps.CreateParticipant(r.Context(), service.NewParticipant{
		Name: req.Name,
		Age:  req.Age,
		Bio:  req.Bio,
	})
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /participants.
func (h *ParticipantHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ps, err := h.deps.ListParticipants(r.Context())
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// HandleGet handles GET /participants/{id}.
func (h *ParticipantHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.GetParticipant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDiscover handles GET /participants/{id}/discover.
func (h *ParticipantHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	ps, err := h.deps.Discover(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// HandleStats handles GET /participants/{id}/stats.
func (h *ParticipantHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleHistory handles GET /participants/{id}/history?limit=N.
func (h *ParticipantHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	entries, err := h.deps.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleMatches handles GET /participants/{id}/matches.
func (h *ParticipantHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	ms, err := h.deps.Matches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}
