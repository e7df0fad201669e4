// Package service provides the prediction orchestrator and the offline
// trainer behind the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/medixpert/internal/adapters/repository"
	"github.com/okian/medixpert/internal/domain/artifact"
	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/dedupe"
	"github.com/okian/medixpert/internal/domain/fallback"
	"github.com/okian/medixpert/internal/domain/model"
	"github.com/okian/medixpert/pkg/logger"
	"github.com/okian/medixpert/pkg/metrics"
)

// DefaultConfidenceThreshold is the minimum classifier probability accepted.
const DefaultConfidenceThreshold = 0.20

const maxAlternatives = 5

// SoftFailure names why the classifier tier declined a request.
type SoftFailure string

// Classifier soft failures.
const (
	ArtifactMissing SoftFailure = "artifact_missing"
	CatalogMismatch SoftFailure = "catalog_mismatch"
	ClassifierError SoftFailure = "classifier_error"
	UnknownLabel    SoftFailure = "unknown_label"
	LowConfidence   SoftFailure = "low_confidence"
)

// PredictionStore records predictions and reads them back.
type PredictionStore interface {
	SavePrediction(ctx context.Context, p model.Prediction) error
	GetPredictionByRequest(ctx context.Context, userID, requestID string) (model.Prediction, error)
	ListPredictions(ctx context.Context, userID string, limit int) ([]model.Prediction, error)
}

// Step is one entry of the decision trail.
type Step struct {
	Tier    string      `json:"tier"`
	Outcome string      `json:"outcome"`
	Reason  SoftFailure `json:"reason,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// Explanation describes how a request would be answered.
type Explanation struct {
	Known        []string          `json:"known"`
	Ignored      []string          `json:"ignored,omitempty"`
	Steps        []Step            `json:"steps"`
	Disease      string            `json:"disease,omitempty"`
	Confidence   float64           `json:"confidence"`
	Method       model.Method      `json:"method,omitempty"`
	Alternatives []model.Candidate `json:"alternatives,omitempty"`
}

// decision is the outcome of the two-tier cascade.
type decision struct {
	disease catalog.Disease
	ratio   float64
	method  model.Method
	steps   []Step
}

// Service orchestrates the classifier and fallback tiers.
type Service struct {
	mu      sync.RWMutex
	started bool

	catalog catalog.Provider
	store   PredictionStore
	deduper dedupe.Deduper
	scorer  *fallback.Scorer

	artifact  atomic.Pointer[artifact.Artifact]
	modelPath string
	threshold float64

	logger  logger.Logger
	metrics *metrics.Manager
	now     func() time.Time
	newID   func() string
}

// New constructs a Service over a catalog provider and a prediction store.
func New(provider catalog.Provider, store PredictionStore, opts ...Option) *Service {
	s := &Service{
		catalog:   provider,
		store:     store,
		deduper:   dedupe.NewInMemoryDeduper(),
		scorer:    fallback.New(),
		threshold: DefaultConfidenceThreshold,
		logger:    logger.Nop(),
		metrics:   metrics.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the model artifact. A missing or corrupt artifact is not an
// error; the service then answers from the fallback tier until a model is
// trained.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting prediction service...")
	err := s.Reload(ctx)
	if err != nil && !errors.Is(err, artifact.ErrArtifactMissing) && !errors.Is(err, artifact.ErrArtifactCorrupt) {
		return err
	}
	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Bool("model_loaded", s.artifact.Load() != nil),
		logger.Float64("threshold", s.threshold))
	return nil
}

// Stop marks the service stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped")
}

// Reload reads the artifact from the model path and swaps it in. On
// ErrArtifactMissing the loaded model is cleared; on other errors the
// current model is kept.
func (s *Service) Reload(ctx context.Context) error {
	if s.modelPath == "" {
		s.artifact.Store(nil)
		s.metrics.SetModelLoaded(false, time.Time{})
		return fmt.Errorf("%w: no model path configured", artifact.ErrArtifactMissing)
	}
	a, err := artifact.Load(s.modelPath)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactMissing) {
			s.artifact.Store(nil)
			s.metrics.SetModelLoaded(false, time.Time{})
			s.logger.Warn(ctx, "no trained model, serving from fallback", logger.String("path", s.modelPath))
		} else {
			s.logger.Error(ctx, "model reload failed", logger.String("path", s.modelPath), logger.Error(err))
		}
		return err
	}
	s.artifact.Store(a)
	s.metrics.SetModelLoaded(true, a.TrainedAt)

	fields := []logger.Field{
		logger.String("path", s.modelPath),
		logger.Int("classes", len(a.Forest.Classes)),
		logger.Int("features", len(a.SymptomNames)),
	}
	if snap, err := catalog.Load(ctx, s.catalog); err == nil {
		s.metrics.UpdateCatalogSize(len(snap.Symptoms), len(snap.Diseases))
		if verr := a.Validate(snap.Fingerprint()); verr != nil {
			s.logger.Warn(ctx, "loaded model does not match the catalog, retrain needed", logger.Error(verr))
		}
	}
	s.logger.Info(ctx, "model loaded", fields...)
	return nil
}

// Use swaps in an already loaded artifact. nil clears the model.
func (s *Service) Use(a *artifact.Artifact) {
	s.artifact.Store(a)
	if a == nil {
		s.metrics.SetModelLoaded(false, time.Time{})
		return
	}
	s.metrics.SetModelLoaded(true, a.TrainedAt)
}

// ModelLoaded reports whether an artifact is in use.
func (s *Service) ModelLoaded() bool {
	return s.artifact.Load() != nil
}

// Predict answers one request with the classifier tier, falling back to
// symptom overlap scoring, and records the prediction. Only ErrInvalidInput
// and ErrNoMatch describe the request itself; other errors are
// infrastructure failures.
func (s *Service) Predict(ctx context.Context, req model.PredictRequest) (model.Prediction, error) {
	start := s.now()

	key := ""
	if req.RequestID != "" {
		key = req.UserID + "\x00" + req.RequestID
		if _, seen := s.deduper.Claim(ctx, key); seen {
			return s.replay(ctx, req, start)
		}
	}

	p, err := s.predict(ctx, req)
	if err != nil {
		if key != "" {
			s.deduper.Release(ctx, key)
		}
		s.metrics.RecordPredictionFailure(failureLabel(err), s.now().Sub(start))
		return model.Prediction{}, err
	}

	if err := s.store.SavePrediction(ctx, p); err != nil {
		if key != "" {
			s.deduper.Release(ctx, key)
		}
		if errors.Is(err, repository.ErrDuplicate) && req.RequestID != "" {
			return s.replay(ctx, req, start)
		}
		s.metrics.RecordPredictionFailure("error", s.now().Sub(start))
		return model.Prediction{}, fmt.Errorf("record prediction: %w", err)
	}
	if key != "" {
		s.deduper.Bind(ctx, key, p.ID)
	}

	s.metrics.RecordPrediction(string(p.Method), p.Confidence, s.now().Sub(start))
	s.logger.Info(ctx, "prediction recorded",
		logger.String("id", p.ID),
		logger.String("disease", p.Disease),
		logger.String("method", string(p.Method)),
		logger.Float64("confidence", p.Confidence))
	return p, nil
}

// replay answers a repeated idempotency key with the stored prediction.
func (s *Service) replay(ctx context.Context, req model.PredictRequest, start time.Time) (model.Prediction, error) {
	p, err := s.store.GetPredictionByRequest(ctx, req.UserID, req.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Prediction{}, ErrRequestInFlight
		}
		return model.Prediction{}, fmt.Errorf("replay prediction: %w", err)
	}
	s.metrics.RecordIdempotentReplay()
	s.logger.Debug(ctx, "replayed prediction",
		logger.String("id", p.ID), logger.String("request_id", req.RequestID),
		logger.Duration("elapsed", s.now().Sub(start)))
	return p, nil
}

func (s *Service) predict(ctx context.Context, req model.PredictRequest) (model.Prediction, error) {
	symptoms := catalog.NormalizeAll(req.Symptoms)
	if len(symptoms) == 0 {
		return model.Prediction{}, fmt.Errorf("%w: no symptoms provided", ErrInvalidInput)
	}
	snap, err := catalog.Load(ctx, s.catalog)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("load catalog: %w", err)
	}
	known, _ := partition(snap, symptoms)
	if len(known) == 0 {
		return model.Prediction{}, ErrInvalidInput
	}

	d, err := s.decide(ctx, snap, known)
	if err != nil {
		return model.Prediction{}, err
	}
	return model.Prediction{
		ID:                 s.newID(),
		UserID:             req.UserID,
		RequestID:          req.RequestID,
		Symptoms:           known,
		Disease:            d.disease.Name,
		Severity:           d.disease.Severity,
		Confidence:         model.ClampConfidence(d.ratio),
		Method:             d.method,
		AdditionalSymptoms: req.AdditionalSymptoms,
		Notes:              req.Notes,
		CreatedAt:          s.now().UTC(),
	}, nil
}

// decide runs the cascade for recognised symptoms.
func (s *Service) decide(ctx context.Context, snap catalog.Snapshot, known []string) (decision, error) {
	var steps []Step

	d, ratio, reason, detail := s.classify(snap, known)
	if reason == "" {
		steps = append(steps, Step{Tier: string(model.MethodClassifier), Outcome: "accepted", Detail: detail})
		return decision{disease: d, ratio: ratio, method: model.MethodClassifier, steps: steps}, nil
	}
	steps = append(steps, Step{Tier: string(model.MethodClassifier), Outcome: "declined", Reason: reason, Detail: detail})
	s.metrics.RecordClassifierFallback(string(reason))
	s.logger.Debug(ctx, "classifier declined, using fallback",
		logger.String("reason", string(reason)), logger.String("detail", detail))

	m, err := s.scorer.Score(snap, known)
	if err != nil {
		steps = append(steps, Step{Tier: string(model.MethodFallback), Outcome: "no_match"})
		return decision{steps: steps}, fmt.Errorf("%w: %w", ErrNoMatch, err)
	}
	steps = append(steps, Step{
		Tier: string(model.MethodFallback), Outcome: "accepted",
		Detail: fmt.Sprintf("%d of %d symptoms", m.Matches, m.Total),
	})
	return decision{disease: m.Disease, ratio: m.Score, method: model.MethodFallback, steps: steps}, nil
}

// classify runs the classifier tier. A non-empty reason means the tier
// declined.
func (s *Service) classify(snap catalog.Snapshot, known []string) (catalog.Disease, float64, SoftFailure, string) {
	a := s.artifact.Load()
	if a == nil {
		return catalog.Disease{}, 0, ArtifactMissing, ""
	}
	if err := a.Validate(snap.Fingerprint()); err != nil {
		return catalog.Disease{}, 0, CatalogMismatch, err.Error()
	}
	label, conf, err := predictSafely(a, known)
	if err != nil {
		return catalog.Disease{}, 0, ClassifierError, err.Error()
	}
	d, ok := snap.Disease(label)
	if !ok {
		return catalog.Disease{}, 0, UnknownLabel, label
	}
	detail := fmt.Sprintf("%s at %.3f", label, conf)
	if conf < s.threshold {
		return catalog.Disease{}, 0, LowConfidence, detail
	}
	return d, conf, "", detail
}

// predictSafely turns a classifier panic into an error.
func predictSafely(a *artifact.Artifact, symptoms []string) (label string, conf float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()
	return a.Predict(symptoms)
}

// Explain reports the decision trail for a set of symptoms without
// recording anything.
func (s *Service) Explain(ctx context.Context, symptoms []string) (Explanation, error) {
	normalized := catalog.NormalizeAll(symptoms)
	if len(normalized) == 0 {
		return Explanation{}, fmt.Errorf("%w: no symptoms provided", ErrInvalidInput)
	}
	snap, err := catalog.Load(ctx, s.catalog)
	if err != nil {
		return Explanation{}, fmt.Errorf("load catalog: %w", err)
	}
	known, ignored := partition(snap, normalized)
	ex := Explanation{Known: known, Ignored: ignored}
	if len(known) == 0 {
		return ex, ErrInvalidInput
	}

	d, err := s.decide(ctx, snap, known)
	ex.Steps = d.steps
	if err != nil {
		return ex, err
	}
	ex.Disease = d.disease.Name
	ex.Confidence = model.ClampConfidence(d.ratio)
	ex.Method = d.method
	ex.Alternatives = s.alternatives(snap, known, d.disease.Name)
	return ex, nil
}

// Alternatives ranks other candidate diseases by symptom overlap.
func (s *Service) Alternatives(ctx context.Context, symptoms []string, exclude string) ([]model.Candidate, error) {
	snap, err := catalog.Load(ctx, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return s.alternatives(snap, catalog.NormalizeAll(symptoms), exclude), nil
}

func (s *Service) alternatives(snap catalog.Snapshot, symptoms []string, exclude string) []model.Candidate {
	ranked, err := s.scorer.Rank(snap, symptoms)
	if err != nil {
		return []model.Candidate{}
	}
	out := make([]model.Candidate, 0, maxAlternatives)
	for _, m := range ranked {
		if catalog.Normalize(m.Disease.Name) == catalog.Normalize(exclude) {
			continue
		}
		out = append(out, model.Candidate{Disease: m.Disease.Name, Confidence: model.ClampConfidence(m.Score)})
		if len(out) == maxAlternatives {
			break
		}
	}
	return out
}

// Predictions lists a user's predictions newest first.
func (s *Service) Predictions(ctx context.Context, userID string, limit int) ([]model.Prediction, error) {
	return s.store.ListPredictions(ctx, userID, limit)
}

// Symptoms returns the catalog symptoms.
func (s *Service) Symptoms(ctx context.Context) ([]catalog.Symptom, error) {
	return s.catalog.ListSymptoms(ctx)
}

// Diseases returns the catalog diseases.
func (s *Service) Diseases(ctx context.Context) ([]catalog.Disease, error) {
	return s.catalog.ListDiseases(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":             s.started,
		"modelLoaded":         false,
		"confidenceThreshold": s.threshold,
		"idempotencyKeys":     s.deduper.Size(),
	}
	if a := s.artifact.Load(); a != nil {
		stats["modelLoaded"] = true
		stats["modelTrainedAt"] = a.TrainedAt
		stats["modelAccuracy"] = a.Accuracy
		stats["modelClasses"] = len(a.Forest.Classes)
		stats["modelFeatures"] = len(a.SymptomNames)
		stats["catalogFingerprint"] = a.CatalogFingerprint
	}
	return stats
}

// partition splits normalized names into cataloged and unknown ones.
func partition(snap catalog.Snapshot, names []string) (known, ignored []string) {
	known = make([]string, 0, len(names))
	for _, n := range names {
		if snap.HasSymptom(n) {
			known = append(known, n)
		} else {
			ignored = append(ignored, n)
		}
	}
	return known, ignored
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	}
	return "error"
}
