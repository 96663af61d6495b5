package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/adapter/sqlite"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status [base-dir]",
		Short: "Summarize the recorded download runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args)
			if err != nil {
				return err
			}

			store := csvstore.New(cfg.BaseDir)
			out := cmd.OutOrStdout()
			ok, err := store.Exists(store.ManifestPath())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "No runs recorded in %s\n", store.Dir())
				return nil
			}

			manifest, err := sqlite.Open(store.ManifestPath())
			if err != nil {
				return err
			}
			defer manifest.Close()

			ctx := cmd.Context()
			fetched, err := manifest.FetchedEvents(ctx)
			if err != nil {
				return err
			}
			runs, err := manifest.Runs(ctx, limit)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Manifest: %s\n", store.ManifestPath())
			fmt.Fprintf(out, "Main events downloaded: %s\n\n", humanize.Comma(int64(fetched)))

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tFETCHED\tSKIPPED\tROWS\tSIZE")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					run.ID, humanize.Time(run.StartedAt), run.Status,
					run.Fetched, run.Skipped, humanize.Comma(int64(run.Rows)),
					humanize.Bytes(uint64(run.Bytes)))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, run := range runs {
				if run.Error != "" {
					fmt.Fprintf(out, "\nrun %s failed: %s\n", run.ID, run.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show, newest first")
	return cmd
}
