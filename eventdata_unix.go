//go:build linux || darwin

package reactor

import "sync/atomic"

// EventData is the readiness-model (epoll/kqueue) control block. FD and
// Interest are set by NewEventData and read by the shard when it registers,
// re-arms or unregisters the fd; nothing else about them is safe to mutate
// after registration without going through DelFD first.
type EventData struct {
	co    coSlot
	shard int
	timer atomic.Pointer[TimerHandle]
	flag  atomic.Uint32

	FD       int
	Interest IOEvents
}

// NewEventData allocates an EventData for a readiness-model registration
// of fd, interested in the given events. The returned pointer must be kept
// stable (never copied) for the lifetime of the registration: its address
// is the token stashed in the shard's fd table and is what ties an epoll
// or kqueue notification back to this control block.
func NewEventData(shard int, fd int, interest IOEvents) *EventData {
	return &EventData{shard: shard, FD: fd, Interest: interest}
}
