// Package providers contains model provider implementations and their
// shared error handling.
package providers

import (
	"fmt"
	"net/http"

	"github.com/driftwood-ai/convoy/retry"
)

// ProviderError is a non-2xx response from a model provider API.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider api error (status %d): %s", e.Status, e.Body)
}

func (e *ProviderError) StatusCode() int {
	return e.Status
}

// Retryable reports whether the status indicates a transient condition.
// 520 is Cloudflare's catch-all for origin failures.
func (e *ProviderError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		520:
		return true
	}
	return false
}

// NewError builds a ProviderError from a response. Errors that should not be
// retried are wrapped with retry.MarkPermanent so retry.Do stops immediately.
func NewError(statusCode int, body string) error {
	err := &ProviderError{Status: statusCode, Body: body}
	if !err.Retryable() {
		return retry.MarkPermanent(err)
	}
	return err
}
