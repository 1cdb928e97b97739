package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType buckets an API failure by how the caller should react.
type ErrorType string

const (
	// ErrTypeInvalidCredential means the key or token is rejected outright
	// and will never work again.
	ErrTypeInvalidCredential ErrorType = "invalid_credential"

	// ErrTypeRateLimited means quota is temporarily exceeded; the request
	// can succeed later, possibly on another credential.
	ErrTypeRateLimited ErrorType = "rate_limited"

	// ErrTypeTransient covers server-side failures worth retrying as-is.
	ErrTypeTransient ErrorType = "transient"

	// ErrTypeOther is everything else; retry with caution.
	ErrTypeOther ErrorType = "other"
)

// APIError is a non-2xx response from the generateContent endpoint.
type APIError struct {
	StatusCode int
	Status     string // API status string, e.g. RESOURCE_EXHAUSTED
	Message    string
	RetryAfter time.Duration // 0 when the server sent no hint
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini: %s (HTTP %d): %s", e.Status, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini: HTTP %d: %s", e.StatusCode, e.Message)
}

// Type classifies the failure. Credential rejection is matched on the
// documented message fragments because the API reports it under generic
// INVALID_ARGUMENT / PERMISSION_DENIED statuses.
func (e *APIError) Type() ErrorType {
	msg := strings.ToLower(e.Message)

	switch {
	case e.StatusCode == 429,
		e.Status == "RESOURCE_EXHAUSTED",
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"):
		return ErrTypeRateLimited

	case strings.Contains(msg, "api key not valid"),
		strings.Contains(msg, "api key expired"),
		strings.Contains(msg, "api_key_invalid"),
		e.Status == "UNAUTHENTICATED":
		return ErrTypeInvalidCredential

	case e.StatusCode >= 500:
		return ErrTypeTransient
	}
	return ErrTypeOther
}

// Classify buckets any error from a Handler. Non-API errors (timeouts,
// connection resets) count transient; context cancellation stays other so
// deadline handling is not mistaken for a server problem.
func Classify(err error) ErrorType {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeOther
	}
	return ErrTypeTransient
}

// RetryAfter extracts the server-suggested delay, if the error carries one.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
