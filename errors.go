// errors.go - sentinel errors and a wrap helper in the style the rest of
// this codebase uses throughout: plain sentinels for errors.Is matching,
// %w wrapping for context, and one dedicated type for the
// internal-invariant-violation case that must never crash the process.

package reactor

import (
	"errors"
	"fmt"
)

// Sentinel errors returned synchronously by Selector methods.
var (
	// ErrClosed is returned by any Selector or SingleSelector method
	// called after Close.
	ErrClosed = errors.New("reactor: selector closed")

	// ErrShardOutOfRange is returned when a shard index passed to
	// Select, Wakeup, or an internal routing call is not in [0, nShards).
	ErrShardOutOfRange = errors.New("reactor: shard index out of range")

	// ErrTooManyShards is returned by New when nShards is not in
	// [1, MaxShards].
	ErrTooManyShards = errors.New("reactor: shard count out of range")

	// ErrAlreadyRegistered is returned by AddIO/AddSocket when the fd or
	// handle is already registered with the shard.
	ErrAlreadyRegistered = errors.New("reactor: fd already registered")

	// ErrNotRegistered is returned by DelFD when the fd was never
	// registered, or has already been removed.
	ErrNotRegistered = errors.New("reactor: fd not registered")

	// ErrTimeout is the error delivered to a coroutine's SetCoParam when
	// its timer fired before the I/O it was bound to completed.
	ErrTimeout = errors.New("reactor: operation timed out")
)

// InvariantError reports a violated internal invariant -- for example, a
// coSlot.take racing DrainExpired and observing a state the protocol
// should have made impossible. Per the error handling design, these are
// logged (through the rate-limited diagnostic path) rather than panicked,
// since a single corrupted operation shouldn't bring down a shard serving
// unrelated coroutines.
type InvariantError struct {
	Shard   int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reactor: internal invariant violated (shard %d): %s: %v", e.Shard, e.Message, e.Cause)
	}
	return fmt.Sprintf("reactor: internal invariant violated (shard %d): %s", e.Shard, e.Message)
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *InvariantError) Unwrap() error {
	return e.Cause
}

// WrapError wraps cause with a message, in a form satisfying
// errors.Is(result, cause).
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
