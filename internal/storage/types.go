package storage

import "time"

// Common storage errors
var (
	ErrPathEscape = NewError("PathEscape", "The specified path escapes the storage root")
	ErrNotFound   = NewError("NotFound", "The specified item does not exist")
	ErrTooLarge   = NewError("TooLarge", "The upload exceeds the configured size limit")
)

// AllowedExtensions is the fixed set of audio file extensions served and
// accepted by the system. Lowercased, with leading dot.
var AllowedExtensions = map[string]bool{
	".mp3":  true,
	".ogg":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
}

// FileEntry describes one listed file
type FileEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// UploadStatus reports the outcome of an Upload call
type UploadStatus string

const (
	UploadStored  UploadStatus = "stored"
	UploadSkipped UploadStatus = "skipped" // disallowed extension
)

// UploadResult carries the final name a stored upload received
type UploadResult struct {
	Status   UploadStatus `json:"status"`
	Filename string       `json:"filename,omitempty"`
	Size     int64        `json:"size,omitempty"`
}

// DeleteStatus reports the outcome of a DeleteItem call. Skipped and
// no-op outcomes are ordinary results, not errors.
type DeleteStatus string

const (
	DeleteRemoved         DeleteStatus = "removed"
	DeleteMissing         DeleteStatus = "missing"
	DeleteSkippedNotEmpty DeleteStatus = "skipped_not_empty"
	DeleteFailed          DeleteStatus = "failed"
)

// StorageError represents a storage-specific error
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error { return e.Cause }

// Is matches errors by code so wrapped instances compare equal to the
// package sentinels.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	return ok && t.Code == e.Code
}

// NewError creates a new storage error
func NewError(code, message string) *StorageError {
	return &StorageError{Code: code, Message: message}
}

// NewErrorWithCause creates a new storage error with underlying cause
func NewErrorWithCause(code, message string, cause error) *StorageError {
	return &StorageError{Code: code, Message: message, Cause: cause}
}
