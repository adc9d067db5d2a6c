package analysis

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoArtifact means analysis was attempted with nothing recorded.
	ErrNoArtifact = errors.New("no audio artifact to analyze")

	// ErrUnauthenticated means the caller's credential was missing or did
	// not resolve to a known identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// PayloadTooLargeError reports an artifact exceeding the upload ceiling.
type PayloadTooLargeError struct {
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("file too large, maximum size is %dMB", e.Limit/1024/1024)
}

// InvalidPayloadTypeError reports an unrecognized media type.
type InvalidPayloadTypeError struct {
	MimeType string
}

func (e *InvalidPayloadTypeError) Error() string {
	return fmt.Sprintf("invalid file type %q, please upload an audio file", e.MimeType)
}

// QuotaExceededError reports that the rolling hourly quota is spent.
type QuotaExceededError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d analyses per hour exceeded, retry in %s", e.Limit, e.RetryAfter)
}

// FailedError wraps an upstream provider or parse failure. Message carries
// the server-provided reason when one exists.
type FailedError struct {
	Message string
	Err     error
}

func (e *FailedError) Error() string {
	if e.Message != "" {
		return "analysis failed: " + e.Message
	}
	return "analysis failed"
}

func (e *FailedError) Unwrap() error { return e.Err }

// PersistenceError wraps a history-store failure.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "failed to save recording: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
