package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectStore is the part of *minio.Client the service uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// S3Service is a client for S3-compatible storage.
type S3Service struct {
	client objectStore
}

// NewS3Service connects to the MinIO server at endpoint.
func NewS3Service(endpoint, accessKey, secretKey string, useSSL bool) (*S3Service, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing one or more required MinIO settings: endpoint, access key, secret key")
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Println("Successfully connected to MinIO endpoint:", endpoint)
	return &S3Service{client: minioClient}, nil
}

func (s *S3Service) CreateBucket(ctx context.Context, bucketName string, location string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// UploadDir stores every file below dir under prefix, keeping the relative
// path. Objects that already exist are left alone. It returns the keys written.
func (s *S3Service) UploadDir(ctx context.Context, bucketName, prefix, dir string) ([]string, error) {
	var written []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		stored, err := s.storeFile(ctx, bucketName, key, p)
		if err != nil {
			return err
		}
		if stored {
			written = append(written, key)
		}
		return nil
	})
	log.Printf("Finished uploading %s: %d new objects", dir, len(written))
	return written, err
}

// storeFile will not overwrite an object that already exists.
func (s *S3Service) storeFile(ctx context.Context, bucketName, key, file string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucketName, key, minio.StatObjectOptions{})
	if err == nil {
		log.Printf("Object '%s' already exists in bucket '%s'. Ignoring write operation.", key, bucketName)
		return false, nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return false, fmt.Errorf("failed to check for existing object: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.FPutObject(ctx, bucketName, key, file, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return false, fmt.Errorf("failed to store object in S3: %w", err)
	}
	log.Printf("Successfully stored '%s' in bucket '%s'", key, bucketName)
	return true, nil
}

// Download copies an object into path, creating its directory.
func (s *S3Service) Download(ctx context.Context, bucketName, objectKey, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	if err := s.client.FGetObject(ctx, bucketName, objectKey, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to get object '%s' from S3: %w", objectKey, err)
	}
	log.Printf("Successfully retrieved '%s' from bucket '%s'", objectKey, bucketName)
	return nil
}
