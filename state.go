package reactor

import "sync/atomic"

// ShardState is the lifecycle state of a single SingleSelector.
//
// State Machine:
//
//	StateOpen (0) -> StateClosing (1)  [Close() begins teardown]
//	StateClosing (1) -> StateClosed (2) [Close() released the OS
//	                                     resources]
//
// Transitions are one-way; there is no reopening a closed shard. Open is
// the zero value so a freshly allocated SingleSelector needs no explicit
// initialization to be considered open.
type ShardState uint32

const (
	// StateOpen is the normal operating state: registrations, Select, and
	// Wakeup are all valid.
	StateOpen ShardState = iota
	// StateClosing indicates Close has begun teardown but has not yet
	// finished releasing the shard's OS resources. Calls made in this
	// state already return ErrClosed.
	StateClosing
	// StateClosed indicates the shard's OS resources have been released.
	// All further calls return ErrClosed.
	StateClosed
)

func (s ShardState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// shardState is a lock-free state holder for a SingleSelector's lifecycle,
// following the same cache-conscious CAS-only pattern the rest of this
// codebase uses for hot, rarely-contended state: no mutex, pure atomic
// operations, and no validation of transition legality beyond the CAS
// itself (callers are expected to only ever drive it forward).
type shardState struct {
	v atomic.Uint32
}

func (s *shardState) Load() ShardState {
	return ShardState(s.v.Load())
}

func (s *shardState) Store(v ShardState) {
	s.v.Store(uint32(v))
}

// TryTransition attempts to move from "from" to "to" via CAS, returning
// whether it succeeded.
func (s *shardState) TryTransition(from, to ShardState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// Closed reports whether the shard has finished tearing down.
func (s *shardState) Closed() bool {
	return s.Load() == StateClosed
}

// Closing reports whether the shard is closing or closed -- i.e. no new
// registration should be accepted.
func (s *shardState) Closing() bool {
	state := s.Load()
	return state == StateClosing || state == StateClosed
}
