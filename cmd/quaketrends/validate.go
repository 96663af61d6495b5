package main

import (
	"fmt"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/pipeline"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [base-dir]",
		Short: "Check the downloaded dataset for missing files and broken back-references",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args)
			if err != nil {
				return err
			}

			store := csvstore.New(cfg.BaseDir)
			report, err := pipeline.Validate(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Main events:      %d\n", report.MainEvents)
			fmt.Fprintf(out, "Precursor files:  %d\n", report.PrecursorFiles)
			fmt.Fprintf(out, "Precursor rows:   %d\n", report.PrecursorRows)
			fmt.Fprintf(out, "Merged rows:      %d\n", report.MergedRows)

			if report.OK() {
				fmt.Fprintln(out, "\nAll checks passed.")
				return nil
			}
			if len(report.MissingFiles) > 0 {
				fmt.Fprintf(out, "\nMissing precursor files for main events %v\n", report.MissingFiles)
			}
			for i, problem := range report.Problems {
				fmt.Fprintf(out, "  [%d] %s\n", i+1, problem)
			}
			return fmt.Errorf("dataset under %s failed validation", store.Dir())
		},
	}
}
