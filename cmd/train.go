package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/medixpert/internal/app"
)

func newTrainCmd(c *cli) *cobra.Command {
	var onlyStale bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier from the catalog and write the model artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			trainer := c.newTrainer(store)
			if onlyStale {
				stale, err := trainer.Stale(ctx)
				if err != nil {
					return err
				}
				if !stale {
					fmt.Fprintln(cmd.OutOrStdout(), "model is up to date")
					return nil
				}
			}
			report, err := trainer.Train(ctx)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyStale, "if-stale", false, "Skip training when the model matches the catalog")
	return cmd
}

func printReport(w io.Writer, r service.TrainReport) {
	fmt.Fprintf(w, "examples: %d (%d augmented)\n", r.Examples, r.Augmented)
	fmt.Fprintf(w, "split: %d train / %d test (stratified=%t)\n", r.TrainSize, r.TestSize, r.Stratified)
	fmt.Fprintf(w, "classes: %d  features: %d\n", len(r.Classes), r.Features)
	fmt.Fprintf(w, "model: %s (%s)\n\n", r.ModelPath, r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, r.Evaluation.String())

	fmt.Fprintln(w, "top symptoms by importance:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, imp := range r.Importances {
		name := fmt.Sprintf("#%d", imp.Feature)
		if imp.Feature < len(r.Symptoms) {
			name = r.Symptoms[imp.Feature]
		}
		fmt.Fprintf(tw, "  %s\t%.4f\n", name, imp.Score)
	}
	_ = tw.Flush()
}
