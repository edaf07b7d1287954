package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"trackbench/internal/models"
	"trackbench/internal/plot"
	"trackbench/internal/service"
	"trackbench/pkg/graceful"
	"trackbench/pkg/kafkaclient"
)

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-plot protocols as cleaned events arrive on Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := graceful.Context(cmd.Context())
			defer cancel()

			k := cfg.Sinks.Kafka
			log.Printf("Connecting to Kafka brokers: %v on topic: %s with group ID: %s", k.Brokers, k.Topic, k.GroupID)
			consumer, err := kafkaclient.NewKafkaConsumer(k.Brokers, k.Topic, k.GroupID)
			if err != nil {
				return err
			}
			consumer.StartConsuming(ctx)
			defer consumer.Stop()

			// Events name object keys when the cleaner uploaded to S3.
			var s3Service downloader
			if cfg.Sinks.S3.Enabled {
				svc, err := newS3Service()
				if err != nil {
					return err
				}
				s3Service = svc
			}

			plotter := plot.New(cfg.CleanDir, cfg.PlotDir, cfg.P1RadiiM)
			handled := service.CleanedEvents(consumer).Each(ctx, func(ctx context.Context, ev models.CleanedEvent) error {
				log.Printf("Run %s cleaned %s (%d points)", ev.RunID, ev.Protocol, ev.Points)
				if s3Service != nil {
					if err := fetchCleaned(ctx, s3Service, cfg.Sinks.S3.Bucket, cfg.CleanDir, ev); err != nil {
						return err
					}
				}
				_, err := plotter.Protocol(ev.Protocol)
				return err
			})
			log.Printf("Watch stopped after %d events", handled)
			return nil
		},
	}
}
