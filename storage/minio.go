package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"gpxvault/config"
	"gpxvault/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object key prefixes inside the bucket.
const (
	PrefixGPX       = "gpx/"
	PrefixThumbnail = "thumbnails/"
	PrefixMap       = "maps/"
)

// Store wraps the MinIO client for one bucket.
type Store struct {
	client *minio.Client
	bucket string

	uploadRetries int
	retryDelay    time.Duration
}

// NewStore connects to MinIO and makes sure the bucket exists.
func NewStore(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &Store{
		client:        client,
		bucket:        cfg.MinioBucket,
		uploadRetries: 3,
		retryDelay:    time.Second,
	}, nil
}

// Put uploads an object, retrying transient failures a bounded number of
// times before giving up.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	var lastErr error
	for attempt := 0; attempt < s.uploadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			}
		}

		_, err := s.client.PutObject(ctx, s.bucket, key,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("object upload failed",
			logger.String("key", key),
			logger.Int("attempt", attempt+1),
			logger.ErrorField(err))
	}
	return fmt.Errorf("failed to upload %s after %d attempts: %w", key, s.uploadRetries, lastErr)
}

// Get opens an object for reading. The caller must close the reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	// GetObject is lazy; Stat forces the existence check.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return obj, nil
}

// Remove deletes an object. Removing a missing object is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// List walks objects under a prefix, calling fn for each one.
func (s *Store) List(ctx context.Context, prefix string, fn func(minio.ObjectInfo) error) error {
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes object count and total size per top-level prefix, used
// by the minio subcommand.
func (s *Store) Stats(ctx context.Context) (map[string]int64, map[string]int64, error) {
	counts := make(map[string]int64)
	sizes := make(map[string]int64)
	for _, prefix := range []string{PrefixGPX, PrefixThumbnail, PrefixMap} {
		err := s.List(ctx, prefix, func(obj minio.ObjectInfo) error {
			counts[prefix]++
			sizes[prefix] += obj.Size
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return counts, sizes, nil
}
