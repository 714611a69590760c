package gcp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// BucketCategory prefixes object keys so each media kind lives under its
// own folder in the bucket.
type BucketCategory string

const (
	BucketCategoryCoursePic  BucketCategory = "course-pic"
	BucketCategoryBanner     BucketCategory = "banner"
	BucketCategoryProfilePic BucketCategory = "profile-pic"
	BucketCategoryHintImage  BucketCategory = "hint-image"
)

type BucketService interface {
	// Upload stores the file under a fresh uuid-prefixed key and returns
	// the public URL callers persist on documents.
	Upload(ctx context.Context, category BucketCategory, filename string, file io.Reader) (string, error)
	// DeleteByURL removes the object a previous Upload returned. URLs
	// that don't point into this bucket are rejected.
	DeleteByURL(ctx context.Context, publicURL string) error
	GetPublicURL(key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	cdnDomain     string
	emulatorHost  string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	bucketName := os.Getenv("MEDIA_GCS_BUCKET_NAME")
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var MEDIA_GCS_BUCKET_NAME")
	}
	cdnDomain := os.Getenv("MEDIA_CDN_DOMAIN")
	emulatorHost := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")

	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if emulatorHost != "" {
		stClient, err = storage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"bucket", bucketName,
		"cdn_domain", cdnDomain,
		"emulator_host", emulatorHost,
	)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucketName,
		cdnDomain:     cdnDomain,
		emulatorHost:  emulatorHost,
	}, nil
}

func (bs *bucketService) Upload(ctx context.Context, category BucketCategory, filename string, file io.Reader) (string, error) {
	key := fmt.Sprintf("%s/%s-%s", category, uuid.New().String(), sanitizeFilename(filename))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return bs.GetPublicURL(key), nil
}

func (bs *bucketService) DeleteByURL(ctx context.Context, publicURL string) error {
	key, err := bs.keyFromURL(publicURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	o := bs.storageClient.Bucket(bs.bucketName).Object(key)
	if err := o.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bs.bucketName, err)
	}
	return nil
}

func (bs *bucketService) GetPublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	if bs.emulatorHost != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			bs.emulatorHost,
			url.PathEscape(bs.bucketName),
			url.PathEscape(key),
		)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, key)
}

func (bs *bucketService) keyFromURL(publicURL string) (string, error) {
	raw := strings.TrimSpace(publicURL)
	if raw == "" {
		return "", fmt.Errorf("empty object URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse object URL %q: %w", raw, err)
	}

	if bs.cdnDomain != "" && parsed.Host == bs.cdnDomain {
		return strings.TrimLeft(parsed.Path, "/"), nil
	}
	if parsed.Host == "storage.googleapis.com" {
		rest := strings.TrimLeft(parsed.Path, "/")
		if cut, ok := strings.CutPrefix(rest, bs.bucketName+"/"); ok {
			return cut, nil
		}
	}
	// Emulator media URLs carry the key as the last, escaped path segment.
	if strings.Contains(parsed.Path, "/storage/v1/b/") {
		segments := strings.Split(parsed.Path, "/o/")
		if len(segments) == 2 {
			key, err := url.PathUnescape(segments[1])
			if err != nil {
				return "", fmt.Errorf("unescape object key: %w", err)
			}
			return key, nil
		}
	}
	return "", fmt.Errorf("object URL %q does not point into bucket %q", raw, bs.bucketName)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "file"
	}
	return name
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	default:
		return ""
	}
}
