package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AuthError means the vendor rejected our credentials or the token exchange
// failed. Fatal for the sync pass that hit it; the next period retries.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx response from the vendor or the price feed.
// Recoverable; the pass logs it and continues with partial results.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError means the local store is unavailable. It aborts the current
// pass and propagates; it is never swallowed per-item.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a deadline or network timeout. Timed-out
// vendor calls are abandoned, not retried; the next pass covers the window.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
