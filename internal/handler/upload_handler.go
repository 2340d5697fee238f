package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"cute-chat/internal/transport/httpdto"
	cutechat_errors "cute-chat/pkg/errors"
	"cute-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ImageUploader stores a local image and returns its URL.
type ImageUploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type UploadHandler struct {
	uploader ImageUploader
	maxBytes int64
	log      *logger.Logger
}

func NewUploadHandler(uploader ImageUploader, maxBytes int64, l *logger.Logger) *UploadHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &UploadHandler{uploader: uploader, maxBytes: maxBytes, log: l}
}

// Create accepts a multipart "file" field, stages it to a temporary file and uploads it
// to the images namespace.
func (h *UploadHandler) Create(c *gin.Context) {
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("uploads are not configured", "STORAGE_NOT_CONFIGURED"))
		return
	}
	if h.maxBytes > 0 {
		// Room for the multipart envelope around the file.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("file is required", "INVALID_REQUEST"))
		return
	}

	dir, err := os.MkdirTemp("", "cutechat-upload-")
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("upload failed", "INTERNAL_ERROR"))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("upload failed", "INTERNAL_ERROR"))
		return
	}

	url, err := h.uploader.Upload(c.Request.Context(), path)
	if err != nil {
		status, code := uploadStatus(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		h.log.Ctx(c.Request.Context()).Warnf("upload %s: %v", file.Filename, err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UploadResponse{URL: url}))
}

func uploadStatus(err error) (int, string) {
	switch {
	case errors.Is(err, cutechat_errors.ErrInvalidInput):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"
	case errors.Is(err, cutechat_errors.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "TOO_LARGE"
	case errors.Is(err, cutechat_errors.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable, "STORAGE_NOT_CONFIGURED"
	default:
		return http.StatusBadGateway, "UPLOAD_FAILED"
	}
}
