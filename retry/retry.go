// Package retry implements exponential backoff with jitter for calls to
// external services.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
)

// Option configures a retry loop.
type Option func(*config)

type config struct {
	maxRetries int
	baseWait   time.Duration
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithBaseWait sets the base wait duration used for backoff.
func WithBaseWait(d time.Duration) Option {
	return func(c *config) {
		c.baseWait = d
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// MarkPermanent wraps an error so Do will not retry it.
func MarkPermanent(err error) error {
	return &permanentError{err: err}
}

// IsPermanent reports whether the error was marked permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do executes f, retrying failures with exponential backoff and jitter until
// it succeeds, the attempt budget is exhausted, the context ends, or f
// returns an error marked permanent.
func Do(ctx context.Context, f func() error, opts ...Option) error {
	c := &config{maxRetries: DefaultMaxRetries, baseWait: DefaultBaseWait}
	for _, opt := range opts {
		opt(c)
	}

	var lastError error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
		err := f()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			var p *permanentError
			errors.As(err, &p)
			return p.err
		}
		lastError = err
	}
	return lastError
}
