package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trackbench/internal/clean"
	"trackbench/internal/config"
	"trackbench/internal/env"
	"trackbench/pkg/graceful"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("cleaner: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "cleaner",
		Short:        "Clean GPX tracks per protocol and export the KML references",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load environment variables from a .env file.
			env.LoadEnv()
			cfg, err := config.Load(cmd, configPath)
			if err != nil {
				return err
			}
			ctx, cancel := graceful.Context(cmd.Context())
			defer cancel()

			start := time.Now()
			runID := uuid.New()
			log.Printf("Starting cleaning run %s on %s", runID, cfg.GPXFolder)

			report, err := clean.New(cfg).Run(ctx, runID.String())
			if err != nil {
				return fmt.Errorf("cleaning run failed: %w", err)
			}
			if err := runSinks(ctx, cfg, runID, report); err != nil {
				return err
			}

			fmt.Printf("\nFinished cleaning: %s, took %s\n", report, time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "params file")
	cmd.Flags().String("base-dir", "", "directory relative paths resolve against")
	cmd.Flags().String("gpx-folder", "", "folder searched for GPX files")
	cmd.Flags().String("kml", "", "reference KML file")
	cmd.Flags().String("clean-dir", "", "output directory for cleaned files")
	return cmd
}
