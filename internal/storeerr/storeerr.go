// Package storeerr classifies failures returned by blob and metadata stores.
//
// Store clients join one of the sentinel errors below with the underlying cause,
// so callers can branch on the class with errors.Is while the SDK error stays
// reachable for logging.
package storeerr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransient marks a retryable infrastructure fault (network, throttling, 5xx, timeouts).
	ErrTransient = errors.New("transient store error")
	// ErrFatal marks a non-retryable failure such as malformed input.
	ErrFatal = errors.New("fatal store error")
	// ErrDuplicateKey is returned by metadata stores when the document id already exists.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Transient wraps err as a transient failure of op.
func Transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// Fatal wraps err as a fatal failure of op.
func Fatal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFatal, op, err)
}

// DuplicateKey wraps err as a duplicate key failure for id.
func DuplicateKey(id string, err error) error {
	return fmt.Errorf("%w: %q: %w", ErrDuplicateKey, id, err)
}

// FromStatus classifies err by the HTTP status code a cloud service answered with.
func FromStatus(op string, status int, err error) error {
	switch {
	case status == 408 || status == 429 || status >= 500:
		return Transient(op, err)
	case status >= 400:
		return Fatal(op, err)
	default:
		return Transient(op, err)
	}
}

// IsNetwork reports whether err was caused by the network or by the caller's context.
func IsNetwork(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetryable reports whether the failure class allows resubmitting the whole request.
// A duplicate key is retryable because a retry derives a fresh key.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrDuplicateKey)
}
