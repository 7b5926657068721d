package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// ClassifyStatus maps an HTTP status code to an error type
func ClassifyStatus(statusCode int) ErrorType {
	switch statusCode {
	case 0:
		return ErrorTypeNetwork
	case 401, 403:
		return ErrorTypeAuth
	case 404:
		return ErrorTypeNotFound
	case 429:
		return ErrorTypeRateLimit
	case 500, 502, 503, 504:
		return ErrorTypeServerError
	default:
		if statusCode >= 500 {
			return ErrorTypeServerError
		}
		return ErrorTypeUnknown
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// IsAuthError reports whether err carries an authentication failure
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeAuth
}

// ErrScrapeExhausted signals the clean end of a scrape walk. A timeline page
// yielding no identifiers means the walk is over, not that something broke.
var ErrScrapeExhausted = errors.New("scrape results exhausted")

// FetchExhaustedError reports that a request spent its whole retry budget.
// LastStatus is the HTTP status of the final attempt, 0 for transport failures.
type FetchExhaustedError struct {
	URL        string
	Attempts   int
	LastStatus int
	Err        error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts (last status %d): %s: %v",
		e.Attempts, e.LastStatus, e.URL, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}

// ProbeError reports a failed quota probe. Probe failures are only retried by
// the tracker's own wait-and-reprobe loop, never by the request retry budget.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("quota probe failed: %v", e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// HydrationBatchError reports that one lookup batch could not be resolved.
// Records from batches before Batch remain valid.
type HydrationBatchError struct {
	Batch int
	Size  int
	Err   error
}

func (e *HydrationBatchError) Error() string {
	return fmt.Sprintf("hydration batch %d (%d ids) failed: %v", e.Batch, e.Size, e.Err)
}

func (e *HydrationBatchError) Unwrap() error {
	return e.Err
}
