package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	cutechat_errors "cute-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG (1x1, transparent)
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type fakeObjectStore struct {
	puts        map[string][]byte
	contentType map[string]string
	putErr      error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{puts: map[string][]byte{}, contentType: map[string]string{}}
}

func (f *fakeObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.puts[key] = data
	f.contentType[key] = contentType
	return nil
}

func (f *fakeObjectStore) ObjectURL(ctx context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestImageUploadService_Upload(t *testing.T) {
	store := newFakeObjectStore()
	svc := NewImageUploadService(store, 0)
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	url, err := svc.Upload(context.Background(), writeTemp(t, "cat photo.png", pngBytes))
	require.NoError(t, err)

	key := "images/1700000000123_cat_photo.png"
	assert.Equal(t, "https://cdn.example.com/"+key, url)
	assert.True(t, bytes.Equal(pngBytes, store.puts[key]))
	assert.Equal(t, "image/png", store.contentType[key])
}

func TestImageUploadService_RejectsNonImages(t *testing.T) {
	svc := NewImageUploadService(newFakeObjectStore(), 0)

	_, err := svc.Upload(context.Background(), writeTemp(t, "notes.txt", []byte("just some text")))
	assert.ErrorIs(t, err, cutechat_errors.ErrInvalidInput)
}

func TestImageUploadService_RejectsLargeFiles(t *testing.T) {
	svc := NewImageUploadService(newFakeObjectStore(), 16)

	_, err := svc.Upload(context.Background(), writeTemp(t, "big.png", pngBytes))
	assert.ErrorIs(t, err, cutechat_errors.ErrTooLarge)
}

func TestImageUploadService_StoreFailure(t *testing.T) {
	store := newFakeObjectStore()
	store.putErr = errors.New("bucket unavailable")
	svc := NewImageUploadService(store, 0)

	_, err := svc.Upload(context.Background(), writeTemp(t, "a.png", pngBytes))
	assert.ErrorIs(t, err, store.putErr)
}

func TestImageUploadService_NotConfigured(t *testing.T) {
	var svc *ImageUploadService
	_, err := svc.Upload(context.Background(), "/tmp/a.png")
	assert.ErrorIs(t, err, cutechat_errors.ErrStorageNotConfigured)
}

func TestBuildImageKey(t *testing.T) {
	at := time.UnixMilli(42)
	assert.Equal(t, "images/42_a.png", buildImageKey(at, "a.png"))
	assert.Equal(t, "images/42_my_file_1_.jpg", buildImageKey(at, "my file(1).jpg"))
	assert.Equal(t, "images/42_image", buildImageKey(at, ".."))
}
