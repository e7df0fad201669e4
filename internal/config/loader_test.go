package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/medixpert/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"MEDIXPERT_CONFIG",
	"MEDIXPERT_ADDR",
	"MEDIXPERT_MODEL_PATH",
	"MEDIXPERT_CONFIDENCE_THRESHOLD",
	"MEDIXPERT_FOREST_TREES",
	"MEDIXPERT_RETRAIN_SCHEDULE",
	"MEDIXPERT_FOREST_MIN_SAMPLES_SPLIT",
	"MEDIXPERT_FOREST_MAX_FEATURES",
	"MEDIXPERT_FOREST_BALANCED_CLASS_WEIGHT",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.20)
				convey.So(cfg.ForestTrees, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MEDIXPERT_ADDR", ":8080")
			_ = os.Setenv("MEDIXPERT_MODEL_PATH", "/tmp/m.json")
			_ = os.Setenv("MEDIXPERT_CONFIDENCE_THRESHOLD", "0.35")
			_ = os.Setenv("MEDIXPERT_FOREST_TREES", "25")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ModelPath, convey.ShouldEqual, "/tmp/m.json")
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.35)
				convey.So(cfg.ForestTrees, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When forest tuning comes from environment variables", func() {
			_ = os.Setenv("MEDIXPERT_FOREST_MIN_SAMPLES_SPLIT", "4")
			_ = os.Setenv("MEDIXPERT_FOREST_MAX_FEATURES", "2")
			_ = os.Setenv("MEDIXPERT_FOREST_BALANCED_CLASS_WEIGHT", "false")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the tuning keys are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ForestMinSamplesSplit, convey.ShouldEqual, 4)
				convey.So(cfg.ForestMaxFeatures, convey.ShouldEqual, 2)
				convey.So(cfg.ForestBalancedClassWeight, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := createTempConfigFile(t, `
addr: ":9090"
forest_trees: 40
augmentations: 3
retrain_schedule: "@daily"
`)
			_ = os.Setenv("MEDIXPERT_CONFIG", path)
			_ = os.Setenv("MEDIXPERT_FOREST_TREES", "60")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Augmentations, convey.ShouldEqual, 3)
				convey.So(cfg.RetrainSchedule, convey.ShouldEqual, "@daily")
				convey.So(cfg.ForestTrees, convey.ShouldEqual, 60)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("MEDIXPERT_CONFIG", "/non/existent/file.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("MEDIXPERT_CONFIDENCE_THRESHOLD", "2")

			_, err := config.Load(ctx)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric value cannot be parsed", func() {
			_ = os.Setenv("MEDIXPERT_FOREST_TREES", "many")

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
