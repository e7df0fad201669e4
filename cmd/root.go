package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/medixpert/internal/adapters/repository"
	service "github.com/okian/medixpert/internal/app"
	"github.com/okian/medixpert/internal/config"
	"github.com/okian/medixpert/internal/domain/dataset"
	"github.com/okian/medixpert/internal/domain/dedupe"
	"github.com/okian/medixpert/pkg/logger"
)

// cli carries the state shared by every subcommand once the root has run.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "medixpert",
		Short:        "Symptom to disease inference service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "Path to a YAML config file (overrides "+config.EnvConfigFile+")")
	root.PersistentFlags().String("db", "", "Path to the SQLite database (overrides database_path)")
	root.PersistentFlags().String("model", "", "Path to the model artifact (overrides model_path)")

	root.AddCommand(newServeCmd(c))
	root.AddCommand(newTrainCmd(c))
	root.AddCommand(newPredictCmd(c))
	root.AddCommand(newSeedCmd(c))
	return root
}

// setup loads configuration (defaults -> optional file -> env -> flags) and
// initialises logging.
func (c *cli) setup(cmd *cobra.Command) error {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		if err := os.Setenv(config.EnvConfigFile, p); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DatabasePath = p
	}
	if p, _ := cmd.Flags().GetString("model"); p != "" {
		cfg.ModelPath = p
	}

	if err := logger.InitWith(cmd.ErrOrStderr(), logger.Format(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	c.log = logger.Get()
	return nil
}

func (c *cli) openStore(ctx context.Context) (*repository.Store, error) {
	return repository.Open(ctx, c.cfg.DatabasePath, repository.WithLogger(c.log.Named("store")))
}

func (c *cli) newService(store *repository.Store) *service.Service {
	return service.New(store, store,
		service.WithLogger(c.log.Named("service")),
		service.WithConfidenceThreshold(c.cfg.ConfidenceThreshold),
		service.WithModelPath(c.cfg.ModelPath),
		service.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(c.cfg.IdempotencyCacheSize))),
	)
}

func (c *cli) newTrainer(store *repository.Store) *service.Trainer {
	split := dataset.DefaultSplitConfig()
	split.SmallThreshold = c.cfg.SmallDatasetThreshold
	return service.NewTrainer(store, c.cfg.ModelPath,
		service.WithTrainerLogger(c.log.Named("trainer")),
		service.WithAugmentation(c.cfg.Augmentations, c.cfg.AugmentBaseFraction, c.cfg.AugmentFractionStep),
		service.WithForestSize(c.cfg.ForestTrees, c.cfg.ForestMaxDepth),
		service.WithForestTuning(c.cfg.ForestMinSamplesSplit, c.cfg.ForestMaxFeatures, c.cfg.ForestBalancedClassWeight),
		service.WithTrainingSeed(c.cfg.RandomSeed),
		service.WithSplit(split),
	)
}

// seedIfEmpty loads the configured seed file, or the built-in catalog, into
// an empty database.
func (c *cli) seedIfEmpty(ctx context.Context, store *repository.Store) error {
	symptoms, diseases, err := store.CatalogCounts(ctx)
	if err != nil {
		return err
	}
	if symptoms > 0 || diseases > 0 {
		return nil
	}
	f := repository.DefaultSeed()
	if c.cfg.CatalogSeedPath != "" {
		if f, err = repository.LoadSeedFile(c.cfg.CatalogSeedPath); err != nil {
			return err
		}
	}
	res, err := store.Seed(ctx, f)
	if err != nil {
		return err
	}
	c.log.Info(ctx, "seeded empty catalog",
		logger.Int("symptoms", res.SymptomsCreated),
		logger.Int("diseases", res.DiseasesCreated))
	return nil
}
