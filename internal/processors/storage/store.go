// Package storage holds processors backed by an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("storage: object not found")

// Config holds the S3 endpoint and credentials.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Object is the metadata the processors read from the store.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// ObjectStore is the read-only view of a bucket store the processors need.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	Walk(ctx context.Context, bucket, prefix string, recursive bool, fn func(Object) error) error
	Stat(ctx context.Context, bucket, key string) (Object, error)
}

// Opener builds a store from config. Tests substitute their own.
type Opener func(cfg Config) (ObjectStore, error)

type minioStore struct {
	client *minio.Client
}

// OpenMinio connects to an S3-compatible endpoint with static credentials.
func OpenMinio(cfg Config) (ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &minioStore{client: client}, nil
}

func (s *minioStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return s.client.BucketExists(ctx, bucket)
}

func (s *minioStore) Walk(ctx context.Context, bucket, prefix string, recursive bool, fn func(Object) error) error {
	// Cancelling stops the lister goroutine when fn bails out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: recursive}) {
		if info.Err != nil {
			return info.Err
		}
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		if err := fn(toObject(info)); err != nil {
			return err
		}
	}
	return nil
}

func (s *minioStore) Stat(ctx context.Context, bucket, key string) (Object, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return Object{}, ErrNotFound
		}
		return Object{}, err
	}
	return toObject(info), nil
}

func toObject(info minio.ObjectInfo) Object {
	return Object{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}
}

// ParseURL splits s3://bucket/key.
func ParseURL(raw string) (bucket, key string, err error) {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("storage: %q is not an s3 url", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage: %q has no bucket or key", raw)
	}
	return bucket, key, nil
}

// FormatURL builds the s3:// URL used as source.path.
func FormatURL(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}
