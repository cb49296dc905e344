// Package storage keeps gift content in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/config"
)

// ErrTooLarge indicates an upload above the configured size limit.
var ErrTooLarge = errors.New("storage: content exceeds upload limit")

// Store uploads content and signs download URLs.
type Store struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
	maxBytes   int64
}

// New connects to the bucket described by cfg and creates it when missing.
// It returns nil without error when no endpoint is configured.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, nil
	}
	client, errClient := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if errClient != nil {
		return nil, fmt.Errorf("storage: client: %w", errClient)
	}
	exists, errExists := client.BucketExists(ctx, cfg.Bucket)
	if errExists != nil {
		return nil, fmt.Errorf("storage: check bucket %s: %w", cfg.Bucket, errExists)
	}
	if !exists {
		if errMake := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); errMake != nil {
			return nil, fmt.Errorf("storage: create bucket %s: %w", cfg.Bucket, errMake)
		}
		log.Infof("storage: created bucket %s", cfg.Bucket)
	}
	log.WithFields(log.Fields{"endpoint": endpoint, "bucket": cfg.Bucket}).Info("storage: object store ready")

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{client: client, bucket: cfg.Bucket, presignTTL: ttl, maxBytes: cfg.MaxUploadBytes}, nil
}

// Upload stores content for a shop and returns its content reference.
func (s *Store) Upload(ctx context.Context, shopID uint64, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", ErrTooLarge
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	key := objectKey(shopID, uuid.NewString(), filename)
	if _, errPut := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); errPut != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, errPut)
	}
	return key, nil
}

// PresignedURL returns a time-limited download URL for a content reference.
func (s *Store) PresignedURL(ctx context.Context, ref string) (string, error) {
	u, errSign := s.client.PresignedGetObject(ctx, s.bucket, ref, s.presignTTL, url.Values{})
	if errSign != nil {
		return "", fmt.Errorf("storage: presign %s: %w", ref, errSign)
	}
	return u.String(), nil
}

// Owns reports whether ref was uploaded by the shop.
func Owns(shopID uint64, ref string) bool {
	return strings.HasPrefix(ref, shopPrefix(shopID))
}

func shopPrefix(shopID uint64) string {
	return fmt.Sprintf("shops/%d/", shopID)
}

func objectKey(shopID uint64, id, filename string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		return shopPrefix(shopID) + id
	}
	return shopPrefix(shopID) + id + "-" + name
}

func sanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if len(cleaned) > 80 {
		cleaned = cleaned[len(cleaned)-80:]
	}
	return cleaned
}
