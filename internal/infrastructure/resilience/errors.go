package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrRateLimited marks an upstream rejection caused by request rate. It is the only retried class.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrUpstream marks any other upstream failure (5xx, transport, decoding).
	ErrUpstream = errors.New("upstream request failed")
	// ErrNonRetryable marks client side rejections (4xx other than 429).
	ErrNonRetryable = errors.New("non-retryable upstream error")
)

// RateLimitError carries the details of a 429 response
type RateLimitError struct {
	Endpoint   string
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: HTTP %d on %s (retry after %s)", ErrRateLimited, e.StatusCode, e.Endpoint, e.RetryAfter)
	}
	return fmt.Sprintf("%s: HTTP %d on %s", ErrRateLimited, e.StatusCode, e.Endpoint)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRateLimited reports whether err signals rate limiting anywhere in its chain
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ClassifyStatus maps a non-2xx HTTP status to the error classes above
func ClassifyStatus(endpoint string, statusCode int, retryAfter time.Duration) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{Endpoint: endpoint, StatusCode: statusCode, RetryAfter: retryAfter}
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d (server error) on %s", ErrUpstream, statusCode, endpoint)
	case statusCode >= 400:
		return fmt.Errorf("%w: HTTP %d (client error) on %s", ErrNonRetryable, statusCode, endpoint)
	default:
		return fmt.Errorf("%w: unexpected HTTP %d on %s", ErrUpstream, statusCode, endpoint)
	}
}
