package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	service "github.com/okian/medixpert/internal/app"
	"github.com/okian/medixpert/internal/domain/model"
	"github.com/okian/medixpert/pkg/logger"
)

// PredictDependencies defines the interface for prediction requests.
type PredictDependencies interface {
	Predict(ctx context.Context, req model.PredictRequest) (model.Prediction, error)
	Alternatives(ctx context.Context, symptoms []string, exclude string) ([]model.Candidate, error)
}

// predictRequest mirrors the OpenAPI schema for POST /predict.
type predictRequest struct {
	Symptoms           []string `json:"symptoms"`
	AdditionalSymptoms string   `json:"additional_symptoms"`
	Notes              string   `json:"notes"`
}

type predictResponse struct {
	Prediction   model.Prediction  `json:"prediction"`
	Alternatives []model.Candidate `json:"alternatives"`
	Message      string            `json:"message"`
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps   PredictDependencies
	logger logger.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies, l logger.Logger) *PredictHandler {
	return &PredictHandler{deps: deps, logger: l}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", ErrMissingUser)
		return
	}
	var req predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", wrapKind(op, ErrBadRequest, err))
		return
	}

	p, err := h.deps.Predict(r.Context(), model.PredictRequest{
		UserID:             user,
		RequestID:          strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
		Symptoms:           req.Symptoms,
		AdditionalSymptoms: req.AdditionalSymptoms,
		Notes:              req.Notes,
	})
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err)
		return
	case errors.Is(err, service.ErrNoMatch):
		writeError(w, http.StatusNotFound, "no_match", service.ErrNoMatch)
		return
	case errors.Is(err, service.ErrRequestInFlight):
		writeError(w, http.StatusConflict, "in_flight", err)
		return
	case err != nil:
		h.logger.Error(r.Context(), "prediction failed", logger.String("user", user), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	alts, err := h.deps.Alternatives(r.Context(), p.Symptoms, p.Disease)
	if err != nil {
		h.logger.Warn(r.Context(), "alternatives unavailable", logger.Error(err))
	}
	if alts == nil {
		alts = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, predictResponse{
		Prediction:   p,
		Alternatives: alts,
		Message:      fmt.Sprintf("Most likely condition: %s (%.1f%% confidence)", p.Disease, p.Confidence),
	})
}
