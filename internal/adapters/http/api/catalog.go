package api

import (
	"context"
	"net/http"

	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/pkg/logger"
)

// CatalogDependencies defines the interface for catalog reads.
type CatalogDependencies interface {
	Symptoms(ctx context.Context) ([]catalog.Symptom, error)
	Diseases(ctx context.Context) ([]catalog.Disease, error)
}

// CatalogHandler serves the symptom and disease catalog.
type CatalogHandler struct {
	deps   CatalogDependencies
	logger logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies, l logger.Logger) *CatalogHandler {
	return &CatalogHandler{deps: deps, logger: l}
}

// HandleSymptoms handles GET /symptoms requests.
func (h *CatalogHandler) HandleSymptoms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	symptoms, err := h.deps.Symptoms(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "list symptoms failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if symptoms == nil {
		symptoms = []catalog.Symptom{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": symptoms, "count": len(symptoms)})
}

// HandleDiseases handles GET /diseases requests.
func (h *CatalogHandler) HandleDiseases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	diseases, err := h.deps.Diseases(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "list diseases failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if diseases == nil {
		diseases = []catalog.Disease{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": diseases, "count": len(diseases)})
}
