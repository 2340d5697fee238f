package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	cutechat_errors "cute-chat/pkg/errors"

	"github.com/gabriel-vasile/mimetype"
)

// ImagesPrefix is the object-storage namespace for chat attachments.
const ImagesPrefix = "images/"

// DefaultMaxImageBytes bounds a single attachment.
const DefaultMaxImageBytes int64 = 10 << 20

// ObjectStore is the slice of the S3 client the upload service needs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	ObjectURL(ctx context.Context, key string) (string, error)
}

type ImageUploadService struct {
	store    ObjectStore
	maxBytes int64
	now      func() time.Time
}

func NewImageUploadService(store ObjectStore, maxBytes int64) *ImageUploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageUploadService{store: store, maxBytes: maxBytes, now: time.Now}
}

// Upload stores the file at localPath under images/ and returns a retrievable URL.
func (s *ImageUploadService) Upload(ctx context.Context, localPath string) (string, error) {
	if s == nil || s.store == nil {
		return "", cutechat_errors.ErrStorageNotConfigured
	}
	if strings.TrimSpace(localPath) == "" {
		return "", cutechat_errors.ErrInvalidInput
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return "", cutechat_errors.ErrInvalidInput
	}
	if info.Size() > s.maxBytes {
		return "", cutechat_errors.ErrTooLarge
	}

	mtype, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: %s is not an image", cutechat_errors.ErrInvalidInput, mtype.String())
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := buildImageKey(s.now(), filepath.Base(localPath))
	if err := s.store.Put(ctx, key, mtype.String(), f, info.Size()); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.store.ObjectURL(ctx, key)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// buildImageKey prefixes the file name with the upload time so repeated names never collide.
func buildImageKey(at time.Time, name string) string {
	name = unsafeKeyChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "image"
	}
	return fmt.Sprintf("%s%d_%s", ImagesPrefix, at.UnixMilli(), name)
}
