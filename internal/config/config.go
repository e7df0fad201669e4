// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file holding the catalog and prediction history.
	DatabasePath string `koanf:"database_path"`

	// ModelPath is where the trained artifact is written and loaded from.
	ModelPath string `koanf:"model_path"`

	// CatalogSeedPath optionally points at a YAML catalog used by the seed command.
	CatalogSeedPath string `koanf:"catalog_seed_path"`

	// ConfidenceThreshold is the minimum classifier probability accepted before falling back.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// Augmentations is the number of partial-symptom examples generated per disease.
	Augmentations int `koanf:"augmentations"`

	// AugmentBaseFraction and AugmentFractionStep define the sampling fraction base+step*i.
	AugmentBaseFraction float64 `koanf:"augment_base_fraction"`
	AugmentFractionStep float64 `koanf:"augment_fraction_step"`

	// ForestTrees and ForestMaxDepth size the classifier.
	ForestTrees    int `koanf:"forest_trees"`
	ForestMaxDepth int `koanf:"forest_max_depth"`

	// ForestMinSamplesSplit is the smallest node a tree may split.
	ForestMinSamplesSplit int `koanf:"forest_min_samples_split"`

	// ForestMaxFeatures bounds the features tried per split. Zero means the
	// square root of the symptom count.
	ForestMaxFeatures int `koanf:"forest_max_features"`

	// ForestBalancedClassWeight weights classes by inverse frequency.
	ForestBalancedClassWeight bool `koanf:"forest_balanced_class_weight"`

	// RandomSeed seeds augmentation, splitting and bootstrap sampling.
	RandomSeed int64 `koanf:"random_seed"`

	// SmallDatasetThreshold switches the split to non-stratified below this size.
	SmallDatasetThreshold int `koanf:"small_dataset_threshold"`

	// RetrainSchedule is a cron spec for stale-model retraining. Empty disables it.
	RetrainSchedule string `koanf:"retrain_schedule"`

	// IdempotencyCacheSize bounds the request-id cache.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// MaxHistoryLimit caps GET /predictions?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		DatabasePath:              "data/medixpert.db",
		ModelPath:                 "data/model.json",
		ConfidenceThreshold:       0.20,
		Augmentations:             5,
		AugmentBaseFraction:       0.60,
		AugmentFractionStep:       0.075,
		ForestTrees:               100,
		ForestMaxDepth:            10,
		ForestMinSamplesSplit:     2,
		ForestMaxFeatures:         0,
		ForestBalancedClassWeight: true,
		RandomSeed:                42,
		SmallDatasetThreshold:     30,
		IdempotencyCacheSize:      50_000,
		MaxHistoryLimit:           100,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.ModelPath == "":
		return fmt.Errorf("%w: model_path must not be empty", ErrInvalidConfig)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: confidence_threshold %v outside [0,1]", ErrInvalidConfig, c.ConfidenceThreshold)
	case c.Augmentations < 0:
		return fmt.Errorf("%w: augmentations must be >= 0", ErrInvalidConfig)
	case c.AugmentBaseFraction <= 0 || c.AugmentBaseFraction > 1:
		return fmt.Errorf("%w: augment_base_fraction %v outside (0,1]", ErrInvalidConfig, c.AugmentBaseFraction)
	case c.AugmentFractionStep < 0:
		return fmt.Errorf("%w: augment_fraction_step must be >= 0", ErrInvalidConfig)
	case c.ForestTrees <= 0:
		return fmt.Errorf("%w: forest_trees must be > 0", ErrInvalidConfig)
	case c.ForestMaxDepth <= 0:
		return fmt.Errorf("%w: forest_max_depth must be > 0", ErrInvalidConfig)
	case c.ForestMinSamplesSplit < 2:
		return fmt.Errorf("%w: forest_min_samples_split must be >= 2", ErrInvalidConfig)
	case c.ForestMaxFeatures < 0:
		return fmt.Errorf("%w: forest_max_features must be >= 0", ErrInvalidConfig)
	case c.SmallDatasetThreshold < 0:
		return fmt.Errorf("%w: small_dataset_threshold must be >= 0", ErrInvalidConfig)
	case c.MaxHistoryLimit <= 0:
		return fmt.Errorf("%w: max_history_limit must be > 0", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.RetrainSchedule != "" {
		if _, err := cron.ParseStandard(c.RetrainSchedule); err != nil {
			return fmt.Errorf("%w: retrain_schedule: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
