package store

import (
	"errors"
	"fmt"
)

// The three error kinds every store operation reports. Callers classify
// with errors.Is; the wrapped text keeps the underlying cause.
var (
	// ErrNotFound is logical absence: no user record, no conversation,
	// no directory.
	ErrNotFound = errors.New("not found")

	// ErrFetchFailed means a read returned no value or a value of the
	// wrong shape.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrWriteFailed means an underlying write reported an error after
	// retries were exhausted.
	ErrWriteFailed = errors.New("write failed")
)

func fetchFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrFetchFailed, err)
}

func writeFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrWriteFailed, err)
}
