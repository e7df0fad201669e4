package service

import (
	"time"

	"github.com/okian/medixpert/internal/domain/dataset"
	"github.com/okian/medixpert/internal/domain/dedupe"
	"github.com/okian/medixpert/pkg/logger"
	"github.com/okian/medixpert/pkg/metrics"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithConfidenceThreshold sets the minimum classifier probability.
// Values outside [0,1] are ignored.
func WithConfidenceThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// WithModelPath sets where Reload reads the artifact from.
func WithModelPath(path string) Option {
	return func(s *Service) {
		s.modelPath = path
	}
}

// WithDeduper sets the idempotency cache.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides prediction id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// TrainerOption applies a configuration option to the Trainer.
type TrainerOption func(*Trainer)

// WithTrainerLogger sets the trainer logger.
func WithTrainerLogger(l logger.Logger) TrainerOption {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithTrainerMetrics sets the metrics manager used by the trainer.
func WithTrainerMetrics(m *metrics.Manager) TrainerOption {
	return func(t *Trainer) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithAugmentation sets the augmentation count and fraction schedule.
func WithAugmentation(n int, base, step float64) TrainerOption {
	return func(t *Trainer) {
		if n >= 0 {
			t.augmentations = n
		}
		if base > 0 && base <= 1 && step >= 0 {
			t.baseFraction = base
			t.fractionStep = step
		}
	}
}

// WithForestSize sets the tree count and depth limit.
func WithForestSize(trees, maxDepth int) TrainerOption {
	return func(t *Trainer) {
		if trees > 0 {
			t.trees = trees
		}
		if maxDepth > 0 {
			t.maxDepth = maxDepth
		}
	}
}

// WithForestTuning sets the split size floor, the features tried per split
// (zero for the square root) and class balancing.
func WithForestTuning(minSamplesSplit, maxFeatures int, balanced bool) TrainerOption {
	return func(t *Trainer) {
		if minSamplesSplit >= 2 {
			t.minSamplesSplit = minSamplesSplit
		}
		if maxFeatures >= 0 {
			t.maxFeatures = maxFeatures
		}
		t.balanced = balanced
	}
}

// WithTrainingSeed sets the seed for augmentation, splitting and bootstrapping.
func WithTrainingSeed(seed int64) TrainerOption {
	return func(t *Trainer) {
		t.seed = seed
	}
}

// WithSplit sets the evaluation split configuration.
func WithSplit(cfg dataset.SplitConfig) TrainerOption {
	return func(t *Trainer) {
		t.split = cfg
	}
}

// WithTrainerClock overrides the time source.
func WithTrainerClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) {
		if now != nil {
			t.now = now
		}
	}
}
