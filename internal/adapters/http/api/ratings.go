package api

import (
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/elove/internal/app"
	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/pkg/logger"
)

// IdempotencyHeader carries the client key used to drop replayed ratings.
const IdempotencyHeader = "Idempotency-Key"

// RatingHandler records and previews ratings.
type RatingHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRatingHandler creates a new rating handler.
func NewRatingHandler(deps Dependencies) *RatingHandler {
	return &RatingHandler{deps: deps, logger: logger.Get().Named("ratings")}
}

type ratingRequest struct {
	FromID     string `json:"from_id" validate:"required"`
	ToID       string `json:"to_id" validate:"required,nefield=FromID"`
	Value      int    `json:"value" validate:"required,min=1,max=10"`
	IsPositive *bool  `json:"is_positive" validate:"required"`
}

func (r ratingRequest) toService() service.RatingRequest {
	return service.RatingRequest{
		FromID:     r.FromID,
		ToID:       r.ToID,
		Value:      r.Value,
		IsPositive: *r.IsPositive,
	}
}

type computeRequest struct {
	FromScore  float64 `json:"from_score" validate:"gte=0"`
	ToScore    float64 `json:"to_score" validate:"gte=0"`
	Value      int     `json:"value" validate:"required,min=1,max=10"`
	IsPositive *bool   `json:"is_positive" validate:"required"`
}

// HandleRecord handles POST /ratings. A request carrying an Idempotency-Key
// that was already accepted is rejected with 409. The key is released when
// processing fails before anything is written so the client can retry; once
// scores are committed it is kept even if a later step fails.
func (h *RatingHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" && h.deps.SeenAndRecord(ctx, key) {
		writeError(w, http.StatusConflict, "duplicate", ErrDuplicateRequest)
		return
	}

	req, err := decodeJSON[ratingRequest](r)
	if err == nil {
		var out service.RatingOutcome
		out, err = h.deps.RecordInteractionAndResolve(ctx, req.toService())
		if err == nil {
			writeJSON(w, http.StatusCreated, out)
			return
		}
	}
	if key != "" && !errors.Is(err, errs.ErrCommitted) {
		h.deps.Unrecord(ctx, key)
	}
	respondError(ctx, w, h.logger, err)
}

// HandlePreview handles POST /ratings/preview.
func (h *RatingHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[ratingRequest](r)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	p, err := h.deps.PreviewRating(r.Context(), req.toService())
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCompute handles POST /ratings/compute for arbitrary scores.
func (h *RatingHandler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[computeRequest](r)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	res, err := h.deps.ComputeRatingUpdate(req.FromScore, req.ToScore, req.Value, *req.IsPositive)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
