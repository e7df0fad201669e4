package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	service "github.com/okian/medixpert/internal/app"
)

func newPredictCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "predict SYMPTOM [SYMPTOM...]",
		Short: "Explain the prediction for a set of symptoms without recording it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := c.newService(store)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			exp, err := svc.Explain(ctx, args)
			if asJSON {
				if jerr := json.NewEncoder(cmd.OutOrStdout()).Encode(exp); jerr != nil {
					return jerr
				}
				return err
			}
			printExplanation(cmd.OutOrStdout(), exp)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the explanation as JSON")
	return cmd
}

func printExplanation(w io.Writer, e service.Explanation) {
	fmt.Fprintf(w, "known symptoms: %v\n", e.Known)
	if len(e.Ignored) > 0 {
		fmt.Fprintf(w, "ignored: %v\n", e.Ignored)
	}
	for _, s := range e.Steps {
		fmt.Fprintf(w, "  %-10s %-9s", s.Tier, s.Outcome)
		if s.Reason != "" {
			fmt.Fprintf(w, " %s", s.Reason)
		}
		if s.Detail != "" {
			fmt.Fprintf(w, " (%s)", s.Detail)
		}
		fmt.Fprintln(w)
	}
	if e.Disease == "" {
		fmt.Fprintln(w, "no prediction")
		return
	}
	fmt.Fprintf(w, "prediction: %s %.1f%% via %s\n", e.Disease, e.Confidence, e.Method)
	for _, a := range e.Alternatives {
		fmt.Fprintf(w, "  also: %s %.1f%%\n", a.Disease, a.Confidence)
	}
}
