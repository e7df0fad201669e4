package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/okian/medixpert/internal/domain/artifact"
	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/dataset"
	"github.com/okian/medixpert/internal/domain/forest"
	"github.com/okian/medixpert/pkg/logger"
	"github.com/okian/medixpert/pkg/metrics"
)

const topImportances = 10

// TrainReport summarises a training run.
type TrainReport struct {
	Examples    int                 `json:"examples"`
	Augmented   int                 `json:"augmented"`
	TrainSize   int                 `json:"train_size"`
	TestSize    int                 `json:"test_size"`
	Stratified  bool                `json:"stratified"`
	Classes     []string            `json:"classes"`
	Features    int                 `json:"features"`
	Symptoms    []string            `json:"symptoms"`
	Evaluation  forest.Report       `json:"evaluation"`
	Importances []forest.Importance `json:"importances"`
	Fingerprint string              `json:"catalog_fingerprint"`
	ModelPath   string              `json:"model_path"`
	Duration    time.Duration       `json:"duration"`
}

// Trainer builds the training set from the catalog, fits the classifier and
// persists the artifact. Only one run may be active at a time.
type Trainer struct {
	mu sync.Mutex

	catalog   catalog.Provider
	modelPath string

	augmentations   int
	baseFraction    float64
	fractionStep    float64
	trees           int
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	balanced        bool
	seed            int64
	split           dataset.SplitConfig
	parallelism     int

	logger  logger.Logger
	metrics *metrics.Manager
	now     func() time.Time
}

// NewTrainer creates a Trainer writing artifacts to modelPath.
func NewTrainer(provider catalog.Provider, modelPath string, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		catalog:         provider,
		modelPath:       modelPath,
		augmentations:   dataset.DefaultAugmentations,
		baseFraction:    dataset.DefaultBaseFraction,
		fractionStep:    dataset.DefaultFractionStep,
		trees:           forest.DefaultTrees,
		maxDepth:        forest.DefaultMaxDepth,
		minSamplesSplit: 2,
		balanced:        true,
		seed:            forest.DefaultSeed,
		split:           dataset.DefaultSplitConfig(),
		parallelism:     runtime.NumCPU(),
		logger:          logger.Nop(),
		metrics:         metrics.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train runs one full training pass. The held-out split only feeds the
// evaluation report; the persisted classifier is fitted on every example.
func (t *Trainer) Train(ctx context.Context) (TrainReport, error) {
	if !t.mu.TryLock() {
		return TrainReport{}, ErrTrainingInProgress
	}
	defer t.mu.Unlock()

	start := t.now()
	report, err := t.train(ctx)
	report.Duration = t.now().Sub(start)
	if err != nil {
		t.metrics.RecordTraining("failure", report.Duration, 0, 0)
		t.logger.Error(ctx, "training failed", logger.Error(err))
		return report, err
	}
	t.metrics.RecordTraining("success", report.Duration, report.Examples, report.Evaluation.Accuracy)
	t.logger.Info(ctx, "training complete",
		logger.Int("examples", report.Examples),
		logger.Int("classes", len(report.Classes)),
		logger.Float64("accuracy", report.Evaluation.Accuracy),
		logger.Bool("stratified", report.Stratified),
		logger.Duration("duration", report.Duration),
		logger.String("path", t.modelPath))
	return report, nil
}

func (t *Trainer) train(ctx context.Context) (TrainReport, error) {
	var report TrainReport

	snap, err := catalog.Load(ctx, t.catalog)
	if err != nil {
		return report, fmt.Errorf("load catalog: %w", err)
	}
	t.metrics.UpdateCatalogSize(len(snap.Symptoms), len(snap.Diseases))

	rng := rand.New(rand.NewSource(t.seed)) //nolint:gosec // reproducible training
	ds, err := dataset.NewBuilder(
		dataset.WithAugmentations(t.augmentations),
		dataset.WithFractionSchedule(t.baseFraction, t.fractionStep),
		dataset.WithRand(rng),
	).Build(snap)
	if err != nil {
		return report, err
	}
	report.Examples = ds.Len()
	report.Features = len(ds.SymptomNames)
	report.Symptoms = ds.SymptomNames
	report.Fingerprint = snap.Fingerprint()
	report.ModelPath = t.modelPath
	for _, ex := range ds.Examples {
		if ex.Augmented {
			report.Augmented++
		}
	}

	parts := dataset.Split(ds, t.split, rng)
	report.TrainSize = parts.Train.Len()
	report.TestSize = parts.Test.Len()
	report.Stratified = parts.Stratified

	evalForest := t.newForest()
	trainX, trainY := parts.Train.XY()
	if err := evalForest.Fit(ctx, trainX, trainY); err != nil {
		return report, fmt.Errorf("fit evaluation model: %w", err)
	}
	testX, testY := parts.Test.XY()
	if report.Evaluation, err = forest.Evaluate(evalForest, testX, testY); err != nil {
		return report, fmt.Errorf("evaluate: %w", err)
	}

	final := t.newForest()
	x, y := ds.XY()
	if err := final.Fit(ctx, x, y); err != nil {
		return report, fmt.Errorf("fit model: %w", err)
	}
	report.Classes = append([]string(nil), final.Classes...)
	report.Importances = final.RankedImportances()
	if len(report.Importances) > topImportances {
		report.Importances = report.Importances[:topImportances]
	}

	a := artifact.New(final, ds.SymptomNames, report.Fingerprint)
	a.TrainedAt = t.now().UTC()
	a.Accuracy = report.Evaluation.Accuracy
	if err := artifact.Save(t.modelPath, a); err != nil {
		return report, fmt.Errorf("save model: %w", err)
	}
	return report, nil
}

func (t *Trainer) newForest() *forest.Forest {
	return forest.New(
		forest.WithTrees(t.trees),
		forest.WithMaxDepth(t.maxDepth),
		forest.WithMinSamplesSplit(t.minSamplesSplit),
		forest.WithMaxFeatures(t.maxFeatures),
		forest.WithBalancedClassWeight(t.balanced),
		forest.WithSeed(t.seed),
		forest.WithParallelism(t.parallelism),
	)
}

// Stale reports whether the persisted model is missing, unreadable or
// trained against a different catalog.
func (t *Trainer) Stale(ctx context.Context) (bool, error) {
	snap, err := catalog.Load(ctx, t.catalog)
	if err != nil {
		return false, fmt.Errorf("load catalog: %w", err)
	}
	a, err := artifact.Load(t.modelPath)
	switch {
	case errors.Is(err, artifact.ErrArtifactMissing), errors.Is(err, artifact.ErrArtifactCorrupt):
		return true, nil
	case err != nil:
		return false, err
	}
	return a.Validate(snap.Fingerprint()) != nil, nil
}
