package reactor

import "sync/atomic"

// coSlot is the single-assignment holder for the coroutine parked against
// an EventData. At most one of the OS completion path and the timer
// expiration path may ever take a non-nil value out of it; the other
// observes an empty slot and does nothing. This is the Go equivalent of
// the BoxedOption used for the same purpose in the original implementation,
// built on atomic.Pointer instead of a hand-rolled tagged pointer since Go
// has no safe way to steal spare bits from a real pointer.
type coSlot struct {
	v atomic.Pointer[Coroutine]
}

// publish stores co in the slot. The caller must establish (by whatever
// means, typically a preceding state flag) that no other publish can occur
// concurrently with this one; coSlot itself only arbitrates the race
// between one publish and any number of concurrent take calls.
func (s *coSlot) publish(co Coroutine) {
	s.v.Store(&co)
}

// take atomically empties the slot and returns what was there, if
// anything. Only the first caller to observe a non-nil value after a given
// publish receives the coroutine; every subsequent or concurrent caller
// gets ok == false.
func (s *coSlot) take() (co Coroutine, ok bool) {
	p := s.v.Swap(nil)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// peek reports whether the slot currently holds a coroutine, without
// taking it. Used only for diagnostics; never for correctness decisions,
// since the value can change the instant peek returns.
func (s *coSlot) peek() bool {
	return s.v.Load() != nil
}
