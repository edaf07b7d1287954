package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"trackbench/internal/clean"
	"trackbench/internal/config"
	"trackbench/internal/env"
	"trackbench/internal/keys"
	"trackbench/internal/models"
	"trackbench/internal/storage"
	"trackbench/pkg/kafkaclient"
)

// runSinks hands a finished run to every enabled sink: S3 first, so the
// published events can reference the uploaded keys.
func runSinks(ctx context.Context, cfg *config.Config, runID uuid.UUID, report *clean.Report) error {
	if cfg.Sinks.S3.Enabled {
		if err := uploadClean(ctx, cfg, report); err != nil {
			return fmt.Errorf("s3 sink: %w", err)
		}
	}
	if cfg.Sinks.Postgres.Enabled {
		if err := storePoints(ctx, cfg, runID, report); err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
	}
	if cfg.Sinks.Kafka.Enabled {
		if err := publishEvents(ctx, cfg, report); err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
	}
	return nil
}

func uploadClean(ctx context.Context, cfg *config.Config, report *clean.Report) error {
	s3Service, err := storage.NewS3Service(
		env.MustGetEnv("MINIO_ENDPOINT"),
		env.MustGetEnv("MINIO_ACCESS_KEY"),
		env.MustGetEnv("MINIO_SECRET_KEY"),
		env.GetBool("MINIO_USE_SSL"),
	)
	if err != nil {
		return err
	}
	bucket := cfg.Sinks.S3.Bucket
	if _, err := s3Service.CreateBucket(ctx, bucket, ""); err != nil {
		return err
	}
	for _, p := range models.Protocols {
		if len(report.Items[p]) == 0 && report.Refs[p] == 0 {
			continue
		}
		dir := filepath.Join(cfg.CleanDir, p.Dir())
		if _, err := s3Service.UploadDir(ctx, bucket, keys.Prefix(cfg.Sinks.S3.Prefix, p), dir); err != nil {
			return fmt.Errorf("failed to upload %s: %w", dir, err)
		}
	}
	return nil
}

func storePoints(ctx context.Context, cfg *config.Config, runID uuid.UUID, report *clean.Report) error {
	store, err := storage.NewPointStore(ctx, cfg.Sinks.Postgres.DSN)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, p := range models.Protocols {
		for _, job := range report.Items[p] {
			if len(job.Points) == 0 {
				continue
			}
			n, err := store.WritePoints(ctx, runID, p, job.Device, job.Points)
			if err != nil {
				return fmt.Errorf("failed to store %s points for %s: %w", p, job.Device, err)
			}
			log.Printf("Stored %d %s points for %s", n, p, job.Device)
		}
	}
	return nil
}

func publishEvents(ctx context.Context, cfg *config.Config, report *clean.Report) error {
	producer, err := kafkaclient.NewProducer(cfg.Sinks.Kafka.Brokers, cfg.Sinks.Kafka.Topic)
	if err != nil {
		return err
	}
	defer producer.Close()

	for _, p := range models.Protocols {
		if len(report.Items[p]) == 0 {
			continue
		}
		event := cleanedEvent(cfg, report, p, time.Now())
		if err := producer.Publish(ctx, report.RunID, event); err != nil {
			return err
		}
		log.Printf("Published cleaned event for %s (%d files)", p, len(event.Files))
	}
	return nil
}

// cleanedEvent names the protocol's point and refs files by object key when
// they were uploaded, by local path otherwise.
func cleanedEvent(cfg *config.Config, report *clean.Report, p models.Protocol, now time.Time) models.CleanedEvent {
	files := report.Files(p)
	if _, ok := report.Refs[p]; ok {
		base := filepath.Join(cfg.CleanDir, p.Dir(), keys.Refs(p))
		files = append(files, base+".gpkg", base+".geojson")
	}
	if cfg.Sinks.S3.Enabled {
		for i, f := range files {
			files[i] = keys.Object(cfg.Sinks.S3.Prefix, p, f)
		}
	}
	return models.CleanedEvent{
		RunID:      report.RunID,
		Protocol:   p,
		CleanDir:   filepath.Join(cfg.CleanDir, p.Dir()),
		Files:      files,
		Points:     len(report.Points(p)),
		FinishedAt: now.UTC().Format(time.RFC3339),
	}
}
