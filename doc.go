// Package reactor implements a sharded, coroutine-driven I/O reactor: a
// cross-platform event-loop runtime that multiplexes cooperative tasks
// onto a small set of OS I/O worker threads.
//
// A Selector is a fixed array of independent shards (SingleSelector), each
// owning its own OS polling instance (epoll on Linux, kqueue on Darwin,
// an I/O completion port on Windows), its own wakeup primitive, and its
// own timer list. A coroutine that issues a would-block I/O operation
// parks itself against an EventData -- the stable-address control block
// whose identity the OS notification refers back to -- and is resumed
// exactly once, by whichever of the OS completion and the timer expiry
// wins the atomic race for its coroutine slot.
//
// The package does not ship a coroutine runtime, a general scheduler, or
// protocol adapters beyond the illustrative TCPConnector; those are
// external collaborators reached through the Coroutine, EventSource, and
// Scheduler interfaces.
package reactor
