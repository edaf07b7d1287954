package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trackbench/internal/models"
	"trackbench/internal/plot"
	"trackbench/internal/stats"
	"trackbench/internal/storage"
)

func newStatsCmd(opts *options) *cobra.Command {
	var store bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the share of each device's p2 points inside the reference ring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			points, refs, err := plot.New(cfg.CleanDir, cfg.PlotDir, cfg.P1RadiiM).Load(models.P2)
			if err != nil {
				return err
			}
			area := stats.RingArea(refs)
			if area.Empty() {
				return fmt.Errorf("no outer/inner references for %s", models.P2)
			}
			result := stats.RingStats(stats.Group(points), area)
			printRingStats(cmd.OutOrStdout(), result)

			if !store {
				return nil
			}
			if !cfg.Sinks.Postgres.Enabled {
				return fmt.Errorf("--store needs sinks.postgres.enabled")
			}
			ps, err := storage.NewPointStore(cmd.Context(), cfg.Sinks.Postgres.DSN)
			if err != nil {
				return err
			}
			defer ps.Close(cmd.Context())
			if err := ps.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			return ps.WriteStats(cmd.Context(), uuid.New(), models.P2, result)
		},
	}
	cmd.Flags().BoolVar(&store, "store", false, "also write the statistics to Postgres")
	return cmd
}

func printRingStats(w io.Writer, result []models.DeviceStat) {
	for _, s := range result {
		fmt.Fprintf(w, "%s: %d/%d -> %.1f%%\n", s.Device, s.Inside, s.Total, s.Percent)
	}
}
