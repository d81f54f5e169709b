package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for domain layer operations.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrMarkerNotFound indicates the disruption list marker was absent from the page.
	// Callers treat it as zero disruptions; it usually means the upstream markup changed.
	ErrMarkerNotFound = errors.New("disruption list marker not found")

	// ErrNotConfigured indicates an optional collaborator has no credentials.
	ErrNotConfigured = errors.New("not configured")
)

// ValidationError represents a validation error with detailed field information.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// FetchError reports a failure to reach the disruption page or an enrichment endpoint.
// StatusCode is zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// AuthError reports credential rejection by the social network.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// RateLimitError represents a 429 response from the publish target.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// MalformedResponseError reports a publish call that returned without the
// identifiers that confirm the record was created.
type MalformedResponseError struct {
	Missing []string
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("response missing %s: %s", strings.Join(e.Missing, ", "), e.Snippet)
}

// PersistenceError reports that the dedup store could not be read or written.
// It is fatal to the process.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is, or wraps, a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsPersistence reports whether err is, or wraps, a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
