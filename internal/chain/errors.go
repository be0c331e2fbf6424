// Package chain defines the error taxonomy shared between the chain client and
// the ingestion loop.
package chain

import "errors"

var (
	// ErrUnavailable marks a transient fetch failure: network error, timeout or
	// non-success response. Callers retry with backoff.
	ErrUnavailable = errors.New("chain source unavailable")
	// ErrNotFound marks a block that does not exist yet. Callers wait for the
	// next cycle instead of retrying immediately.
	ErrNotFound = errors.New("block not found")
)

// IsTransient reports whether err should be retried after a backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
