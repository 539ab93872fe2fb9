// Package blob archives captured audio in an S3-compatible bucket.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const pcmContentType = "audio/L16"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Insecure  bool
	Prefix    string
}

// Archive implements ports.AudioArchive.
type Archive struct {
	client *minio.Client
	bucket string
	prefix string
	host   string
	now    func() time.Time
}

// NewArchive connects to the endpoint and checks that the bucket exists.
func NewArchive(ctx context.Context, cfg Config) (*Archive, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
	}
	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		host:   scheme + "://" + cfg.Endpoint,
		now:    time.Now,
	}, nil
}

// Put uploads raw PCM under key and returns its URL.
func (a *Archive) Put(ctx context.Context, key string, audio []byte) (string, error) {
	objectKey := a.objectKey(key)
	_, err := a.client.PutObject(ctx, a.bucket, objectKey, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
		ContentType:  pcmContentType,
		UserMetadata: map[string]string{"uploaded-at": a.now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return a.publicURL(objectKey), nil
}

func (a *Archive) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

func (a *Archive) publicURL(objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/%s/%s", a.host, a.bucket, strings.Join(segments, "/"))
}
