package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("object not found")

const contentTypeJSON = "application/json"

// Client is a JSON document store bound to one bucket.
type Client interface {
	// EnsureBucket creates the bucket when missing and reports whether it did.
	EnsureBucket(ctx context.Context) (bool, error)
	// Put stores a JSON document under key.
	Put(ctx context.Context, key string, doc []byte) error
	// Get returns the document under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Remove deletes key. A missing key is not an error.
	Remove(ctx context.Context, key string) error
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewClient creates a MinIO-backed document store for cfg.Bucket.
func NewClient(cfg Config) (Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ResponseHeaderTimeout: timeoutDuration,
	}

	mc, err := minio.New(endpointHost(cfg.Endpoint), &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	// Connections are lazy; EnsureBucket is the first real round trip.

	return &minioStore{client: mc, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// endpointHost strips the scheme MinIO does not accept.
func endpointHost(endpoint string) string {
	host := strings.TrimPrefix(endpoint, "http://")
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimRight(host, "/")
}

// isNotFound reports whether err is a missing object or bucket.
func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}

type minioStore struct {
	client *minio.Client
	bucket string
	region string
}

func (s *minioStore) EnsureBucket(ctx context.Context) (bool, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return false, nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return false, fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return true, nil
}

func (s *minioStore) Put(ctx context.Context, key string, doc []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: contentTypeJSON,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *minioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.downloadError(key, err)
	}
	defer obj.Close()

	// minio reports a missing key on first read, not on GetObject
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.downloadError(key, err)
	}
	return data, nil
}

func (s *minioStore) downloadError(key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("failed to download %s: %w", key, err)
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *minioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}
