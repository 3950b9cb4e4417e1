package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors surfaced at the store and scheduler boundaries.
var (
	ErrNotFound  = errors.New("job not found")
	ErrNotReady  = errors.New("result not ready")
	ErrJobExists = errors.New("job already exists")
	ErrLogSealed = errors.New("event log sealed")
)

// ErrCancelled marks a node that unwound because its job was cancelled.
// Cancellation is a terminal outcome, not a retryable failure.
var ErrCancelled = errors.New("node cancelled")

// ErrorKind partitions node failures for the retry decision.
type ErrorKind int

// Failure kinds.
const (
	// KindTransient failures (network timeouts, rate limits, temporary 5xx,
	// malformed extraction JSON) are retried with backoff.
	KindTransient ErrorKind = iota
	// KindFatal failures (malformed URL, unreachable host, schema hard
	// failure) end the node immediately.
	KindFatal
)

// NodeError wraps a node failure with its retry classification.
type NodeError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable node failure.
func Transient(op string, err error) *NodeError {
	return &NodeError{Kind: KindTransient, Op: op, Err: err}
}

// Fatal wraps err as a non-retryable node failure.
func Fatal(op string, err error) *NodeError {
	return &NodeError{Kind: KindFatal, Op: op, Err: err}
}

// IsTransient reports whether err should be retried. Context cancellation is
// never transient. Untyped network timeouts count as transient; anything else
// untyped is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCancelled) {
		return false
	}
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Kind == KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsCancelled reports whether err marks a cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
