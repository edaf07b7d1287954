package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"trackbench/internal/env"
	"trackbench/internal/models"
	"trackbench/internal/storage"
)

type downloader interface {
	Download(ctx context.Context, bucketName, objectKey, path string) error
}

func newS3Service() (*storage.S3Service, error) {
	return storage.NewS3Service(
		env.MustGetEnv("MINIO_ENDPOINT"),
		env.MustGetEnv("MINIO_ACCESS_KEY"),
		env.MustGetEnv("MINIO_SECRET_KEY"),
		env.GetBool("MINIO_USE_SSL"),
	)
}

// fetchCleaned downloads the objects named by an event into the protocol's
// clean directory so it can be plotted on this host.
func fetchCleaned(ctx context.Context, d downloader, bucket, cleanDir string, ev models.CleanedEvent) error {
	dir := filepath.Join(cleanDir, ev.Protocol.Dir())
	for _, key := range ev.Files {
		if err := d.Download(ctx, bucket, key, filepath.Join(dir, path.Base(key))); err != nil {
			return fmt.Errorf("fetch %s: %w", key, err)
		}
	}
	return nil
}
