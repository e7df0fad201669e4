package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/medixpert/internal/adapters/repository"
)

func newSeedCmd(c *cli) *cobra.Command {
	var (
		file   string
		dump   string
		remove []string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML catalog into the database (built-in catalog when no file is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			out := cmd.OutOrStdout()

			if dump != "" {
				f, err := store.Export(ctx)
				if err != nil {
					return err
				}
				if err := repository.WriteSeedFile(dump, f); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %d symptoms and %d diseases to %s\n", len(f.Symptoms), len(f.Diseases), dump)
				return nil
			}

			for _, name := range remove {
				if err := store.DeleteDisease(ctx, name); err != nil {
					return fmt.Errorf("remove %q: %w", name, err)
				}
				fmt.Fprintf(out, "removed disease %s\n", name)
			}
			if len(remove) > 0 && file == "" {
				return nil
			}

			if file == "" {
				file = c.cfg.CatalogSeedPath
			}
			f := repository.DefaultSeed()
			if file != "" {
				if f, err = repository.LoadSeedFile(file); err != nil {
					return err
				}
			}
			res, err := store.Seed(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "symptoms created: %d\ndiseases created: %d\ndiseases updated: %d\nskipped links: %d\n",
				res.SymptomsCreated, res.DiseasesCreated, res.DiseasesUpdated, res.SkippedLinks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to load (defaults to catalog_seed_path, then the built-in catalog)")
	cmd.Flags().StringVar(&dump, "dump", "", "Write the current catalog to this YAML file instead of seeding")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "Delete diseases by name before seeding")
	return cmd
}
