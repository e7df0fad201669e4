// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/model"
	"github.com/okian/medixpert/pkg/logger"
)

// Header names read by the handlers.
const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

const (
	defaultHistoryLimit = 20
	defaultMaxHistory   = 100
	maxBodyBytes        = 64 << 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Predict(ctx context.Context, req model.PredictRequest) (model.Prediction, error)
	Alternatives(ctx context.Context, symptoms []string, exclude string) ([]model.Candidate, error)
	Predictions(ctx context.Context, userID string, limit int) ([]model.Prediction, error)
	Symptoms(ctx context.Context) ([]catalog.Symptom, error)
	Diseases(ctx context.Context) ([]catalog.Disease, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxHistoryLimit caps GET /predictions?limit.
func WithMaxHistoryLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithLogger sets the logger for handler errors.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	maxHistory int
	logger     logger.Logger

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler
	catalogHandler *CatalogHandler
	historyHandler *HistoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{maxHistory: defaultMaxHistory, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.predictHandler = NewPredictHandler(deps, s.logger)
	s.catalogHandler = NewCatalogHandler(deps, s.logger)
	s.historyHandler = NewHistoryHandler(deps, s.maxHistory, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/symptoms", MetricsMiddleware(s.catalogHandler.HandleSymptoms, "symptoms"))
	mux.HandleFunc("/diseases", MetricsMiddleware(s.catalogHandler.HandleDiseases, "diseases"))
	mux.HandleFunc("/predictions", MetricsMiddleware(s.historyHandler.HandleList, "predictions"))
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

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

// userID reads the caller identity header.
func userID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	return id, id != ""
}
