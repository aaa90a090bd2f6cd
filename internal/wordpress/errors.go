package wordpress

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBaseURL is returned before any request when the credential has no base URL.
	ErrMissingBaseURL = errors.New("WordPress API credentials or Base URL not configured")
	// ErrMissingField is returned when an operation lacks a field it cannot run without.
	ErrMissingField = errors.New("missing required field")
	// ErrUnsupportedOperation is returned for resource/operation pairs with no REST mapping.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrMissingBinary is returned when a media upload has no file attached.
	ErrMissingBinary = errors.New("no binary data")
)

// ItemError ties a failure to the input item that caused it.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the WordPress REST API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string // WordPress error code, e.g. "rest_post_invalid_id"
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s (%s)", e.Method, e.Path, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
