package cutechat_errors

import "errors"

// Common errors
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidDraft         = errors.New("invalid draft")
	ErrAlreadyMounted       = errors.New("view already mounted")
	ErrViewClosed           = errors.New("view closed")
	ErrStorageNotConfigured = errors.New("storage not configured")
	ErrSendCancelled        = errors.New("send cancelled")
	ErrAlreadyExists        = errors.New("already exists")
	ErrTooLarge             = errors.New("file too large")
)

