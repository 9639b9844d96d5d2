package downloader

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSeriesNotFound is returned when the series listing is unusable:
// bad identifier, unparseable body or a missing title.
var ErrSeriesNotFound = errors.New("invalid ID specified")

// ErrMalformedResponse wraps a response body that could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPError is returned by the client for non-2xx responses and transport failures.
// StatusCode is 0 when no response was received.
type HTTPError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed: url=%s: %s", e.URL, e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("API response: %d url=%s: %s", e.StatusCode, e.URL, e.Reason)
	}
	return fmt.Sprintf("API response: %d url=%s", e.StatusCode, e.URL)
}

// RateLimitError is returned once a call stayed over its budget for every attempt.
// Err is the upstream 429 when the rejection came from the server.
type RateLimitError struct {
	Kind     RequestKind
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limit exceeded for %s calls after %d attempts: %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rate limit exceeded for %s calls after %d attempts", e.Kind, e.Attempts)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// APIError is a failed metadata fetch for a series or a chapter.
type APIError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("MangaDex code %d error: %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ImageFetchError is a page that could not be downloaded after its retry.
type ImageFetchError struct {
	URL        string
	Page       int
	StatusCode int
	Err        error
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("page %d - %v", e.Page, e.Err)
}

func (e *ImageFetchError) Unwrap() error {
	return e.Err
}

// NewAPIError wraps a fetch failure, carrying over the upstream status code.
func NewAPIError(url string, err error) *APIError {
	return &APIError{URL: url, StatusCode: StatusCode(err), Err: err}
}

// StatusCode maps an error from this package to the status code reported on a task.
// Missing series map to 404, upstream failures keep their HTTP status, and anything
// without one (transport failures, exhausted rate budgets, local I/O) maps to 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if errors.Is(err, ErrSeriesNotFound) {
		return http.StatusNotFound
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return apiErr.StatusCode
	}

	var imgErr *ImageFetchError
	if errors.As(err, &imgErr) && imgErr.StatusCode != 0 {
		return imgErr.StatusCode
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode != 0 {
		return httpErr.StatusCode
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

// IsRateLimited reports whether err is a local budget rejection or an upstream 429.
func IsRateLimited(err error) bool {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return true
	}

	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}
