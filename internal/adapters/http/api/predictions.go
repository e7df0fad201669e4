package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/medixpert/internal/domain/model"
	"github.com/okian/medixpert/pkg/logger"
)

// HistoryDependencies defines the interface for prediction history reads.
type HistoryDependencies interface {
	Predictions(ctx context.Context, userID string, limit int) ([]model.Prediction, error)
}

// HistoryHandler serves a user's prediction history.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
	logger   logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int, l logger.Logger) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit, logger: l}
}

// HandleList handles GET /predictions?limit=N requests.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", ErrMissingUser)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", wrapKind("api.predictions", ErrBadRequest,
				errors.New("limit must be a positive integer")))
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	list, err := h.deps.Predictions(r.Context(), user, limit)
	if err != nil {
		h.logger.Error(r.Context(), "list predictions failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if list == nil {
		list = []model.Prediction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list, "count": len(list)})
}
