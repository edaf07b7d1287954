package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"trackbench/internal/config"
	"trackbench/internal/env"
	"trackbench/internal/plot"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("plotter: %v", err)
	}
}

type options struct {
	configPath string
}

func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	env.LoadEnv()
	return config.Load(cmd, o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "plotter",
		Short:        "Plot every cleaned protocol into maps, summaries and statistics",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			start := time.Now()
			outputs, err := plot.New(cfg.CleanDir, cfg.PlotDir, cfg.P1RadiiM).All()
			if err != nil {
				return err
			}
			for _, o := range outputs {
				fmt.Printf("%s: %d points, %d refs -> %s\n", o.Protocol, o.Points, o.Refs, o.Dir)
			}
			fmt.Printf("\nFinished plotting %d protocols, took %s\n", len(outputs), time.Since(start))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "params file")
	flags.String("base-dir", "", "directory relative paths resolve against")
	flags.String("clean-dir", "", "directory holding the cleaned files")
	flags.String("plot-dir", "", "output directory for plot results")

	cmd.AddCommand(newStatsCmd(opts), newWatchCmd(opts))
	return cmd
}
