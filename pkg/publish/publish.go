// Package publish uploads generated images to an S3 compatible bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ObjectStore is the part of the MinIO client the publisher needs
type ObjectStore interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config holds the bucket connection settings
type Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	Bucket      string
	Prefix      string
	Concurrency int
}

// Publisher uploads files under a key prefix
type Publisher struct {
	store       ObjectStore
	bucket      string
	prefix      string
	concurrency int
	logger      zerolog.Logger
}

// New connects to the configured endpoint
func New(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewWithStore(client, cfg, logger), nil
}

// NewWithStore creates a Publisher over an existing store
func NewWithStore(store ObjectStore, cfg Config, logger zerolog.Logger) *Publisher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Publisher{
		store:       store,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Publish uploads paths, which must live under outputDir, and returns the
// object keys written. The first failure stops uploads not yet started.
func (p *Publisher) Publish(ctx context.Context, outputDir string, paths []string) ([]string, error) {
	// every key is resolved before the first upload starts
	objectKeys := make([]string, len(paths))
	for i, file := range paths {
		key, err := p.Key(outputDir, file)
		if err != nil {
			return nil, err
		}
		objectKeys[i] = key
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)

	var (
		mu   sync.Mutex
		keys []string
	)
	for i, file := range paths {
		key := objectKeys[i]
		eg.Go(func() error {
			info, err := p.store.FPutObject(ctx, p.bucket, key, file, minio.PutObjectOptions{
				ContentType: ContentType(file),
			})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", file, err)
			}
			p.logger.Debug().Str("key", key).Int64("size", info.Size).Msg("Uploaded")
			mu.Lock()
			keys = append(keys, key)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return keys, err
	}
	p.logger.Info().Str("bucket", p.bucket).Int("objects", len(keys)).Msg("Published")
	return keys, nil
}

// Key maps a file under outputDir to its object key
func (p *Publisher) Key(outputDir, file string) (string, error) {
	rel, err := filepath.Rel(outputDir, file)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", file, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.New(file + " is outside " + outputDir)
	}
	if p.prefix == "" {
		return rel, nil
	}
	return path.Join(p.prefix, rel), nil
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ContentType returns the MIME type for a file name
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
