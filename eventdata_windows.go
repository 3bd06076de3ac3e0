//go:build windows

package reactor

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

// EventData is the completion-model (IOCP) control block. Overlapped must
// remain the first field: GetQueuedCompletionStatus hands back a
// *windows.Overlapped pointer, and since it sits at offset zero here, that
// pointer and the *EventData pointer are the same address -- recovering
// one from the other is a plain unsafe.Pointer cast, with no side table
// required. This is the same trick the original implementation's Windows
// backend relies on, expressed with Go's unsafe package instead of a raw
// pointer cast.
type EventData struct {
	Overlapped windows.Overlapped

	co    coSlot
	shard int
	timer atomic.Pointer[TimerHandle]
	flag  atomic.Uint32

	Handle windows.Handle
}

// NewEventData allocates an EventData for a completion-model registration
// of handle. Unlike the Unix backends, handle registration with the IOCP
// happens once (via AddSocket) and is not repeated per operation; the
// Overlapped field is what's threaded through each individual ReadFile/
// WSARecv/WSASend call.
func NewEventData(shard int, handle windows.Handle) *EventData {
	return &EventData{shard: shard, Handle: handle}
}

// eventDataFromOverlapped recovers the owning EventData from the
// *windows.Overlapped pointer GetQueuedCompletionStatus returns. Safe only
// because Overlapped is EventData's first field.
func eventDataFromOverlapped(o *windows.Overlapped) *EventData {
	return (*EventData)(unsafe.Pointer(o))
}
