package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates the submitted URL is missing or malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrTaskNotFound indicates no task exists for the identifier
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotReady indicates the task has not reached done yet
	ErrTaskNotReady = errors.New("task is not ready")

	// ErrArtifactMissing indicates a done task whose file is gone from disk
	ErrArtifactMissing = errors.New("file missing from server")
)

// Extraction failure categories
var (
	ErrVideoUnavailable = errors.New("video unavailable")
	ErrVideoPrivate     = errors.New("video is private")
	ErrAgeRestricted    = errors.New("content is age-restricted")
	ErrAuthRequired     = errors.New("authentication required")
	ErrNetwork          = errors.New("network error")
	ErrUnsupportedURL   = errors.New("url not supported")
	ErrExtractTimeout   = errors.New("extraction timed out")
	ErrDownloadFailed   = errors.New("download failed")
)

// ExtractionError wraps a failure raised inside a worker. Err is the category
// sentinel and Message the collaborator's own diagnostic.
type ExtractionError struct {
	URL     string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	switch {
	case e.Err == nil && e.Message == "":
		return "extraction failed"
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
