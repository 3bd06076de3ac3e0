//go:build windows

package reactor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

// SingleSelector is one independent IOCP-backed shard. Unlike the
// readiness-model Unix backends, IOCP is a completion model: a handle is
// associated with the completion port exactly once (AddSocket), and each
// individual operation supplies its own *windows.Overlapped (embedded as
// EventData.Overlapped) when it calls into the Windows API directly; this
// shard's only job is to park the completion port, hand back whichever
// EventData a completion packet's Overlapped pointer resolves to, and run
// the same dispatch/timer protocol the Unix backends do.
type SingleSelector struct { // betteralign:ignore
	id              int
	state           shardState
	timers          *TimerList
	logger          Logger
	limiter         *invariantLimiter
	eventBufferSize int

	iocp windows.Handle

	// regs counts live handle associations, so callers (and tests) can
	// confirm every AddSocket/DelFD pair for a given handle touched this
	// shard and only this shard.
	regs atomic.Int64

	handleMu sync.RWMutex
	handles  map[windows.Handle]struct{}
}

func newSingleSelector(id int, bufSize int, logger Logger, limiter *invariantLimiter) (*SingleSelector, error) {
	if bufSize <= 0 {
		bufSize = 256
	}
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &SingleSelector{
		id:              id,
		timers:          NewTimerList(),
		logger:          logger,
		limiter:         limiter,
		eventBufferSize: bufSize,
		iocp:            iocp,
		handles:         make(map[windows.Handle]struct{}),
	}, nil
}

// registerIO registers nothing on the completion model: association happens
// once, via AddSocket, not per-operation. It only checks that ev.Handle was
// already associated with this shard, returning ErrNotRegistered if not, so
// the shared Selector.AddIO entry point can be called on every backend.
func (ss *SingleSelector) registerIO(ev *EventData) error {
	ss.handleMu.RLock()
	_, ok := ss.handles[ev.Handle]
	ss.handleMu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	return nil
}

// AddSocket associates handle with this shard's completion port. It must be
// called exactly once per handle, before any operation on it is submitted;
// unlike Unix's per-operation AddIO, this association lasts the handle's
// whole lifetime.
func (s *Selector) AddSocket(shardID int, handle windows.Handle) error {
	ss, err := s.shard(shardID)
	if err != nil {
		return err
	}
	ss.handleMu.Lock()
	if _, ok := ss.handles[handle]; ok {
		ss.handleMu.Unlock()
		return ErrAlreadyRegistered
	}
	ss.handles[handle] = struct{}{}
	ss.handleMu.Unlock()

	if _, err := windows.CreateIoCompletionPort(handle, ss.iocp, 0, 0); err != nil {
		ss.handleMu.Lock()
		delete(ss.handles, handle)
		ss.handleMu.Unlock()
		return err
	}
	ss.regs.Add(1)
	return nil
}

// unregisterFD drops handle from this shard's bookkeeping. IOCP has no
// syscall to dissociate a handle from a completion port short of closing
// the handle itself, so this only stops future EventData lookups from
// treating it as live; closing the underlying handle is the caller's
// responsibility.
func (ss *SingleSelector) unregisterFD(fd int) error {
	handle := windows.Handle(fd)
	ss.handleMu.Lock()
	if _, ok := ss.handles[handle]; !ok {
		ss.handleMu.Unlock()
		return ErrNotRegistered
	}
	delete(ss.handles, handle)
	ss.handleMu.Unlock()
	ss.regs.Add(-1)
	return nil
}

func (ss *SingleSelector) pollOnce(timeoutMs int) ([]rawEvent, error) {
	var bytesTransferred uint32
	var completionKey uintptr
	var overlapped *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(ss.iocp, &bytesTransferred, &completionKey, &overlapped, uint32timeout(timeoutMs))
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return nil, nil
		}
		if overlapped == nil {
			return nil, err
		}
		// A completed-but-failed operation still carries a valid
		// Overlapped pointer; report it as a per-event error rather than
		// a poll-level failure. ERROR_OPERATION_ABORTED is how a
		// CancelIoEx'd operation (issued by handleTimerExpiry below)
		// surfaces here -- translate it to ErrTimeout so dispatch's single
		// delivery site hands the coroutine a timeout rather than a raw
		// OS errno.
		ev := eventDataFromOverlapped(overlapped)
		if err == windows.ERROR_OPERATION_ABORTED {
			return []rawEvent{{ev: ev, err: ErrTimeout}}, nil
		}
		return []rawEvent{{ev: ev, err: err}}, nil
	}

	if overlapped == nil {
		// This shard's own wakeup: a nil-Overlapped completion is never
		// produced by a real I/O operation (EventData.Overlapped is
		// always taken by address and is never nil).
		return []rawEvent{{wakeup: true}}, nil
	}

	ev := eventDataFromOverlapped(overlapped)
	return []rawEvent{{ev: ev, events: EventRead | EventWrite}}, nil
}

func uint32timeout(timeoutMs int) uint32 {
	if timeoutMs < 0 {
		return windows.INFINITE
	}
	return uint32(timeoutMs)
}

// handleTimerExpiry is the TimerList.DrainExpired callback for the IOCP
// backend. Unlike the readiness-model backends, it must not take the co
// slot or resume the coroutine directly: the kernel may still be writing
// into memory the coroutine owns via the outstanding overlapped operation,
// and resuming early would violate EventData's stability invariant (the
// caller could free or reuse that memory while the read/write is still
// in flight). Instead it cancels the operation with CancelIoEx, which
// causes it to surface through the normal completion path in pollOnce
// with ERROR_OPERATION_ABORTED -- translated there to ErrTimeout -- so
// dispatch (selector.go) remains the single site that ever resumes a
// coroutine.
func (ss *SingleSelector) handleTimerExpiry(data TimerData) {
	if data.ev == nil {
		return
	}
	logTimerFired(ss.log(), ss.id)
	// Best effort: the operation may have already completed and been
	// dequeued between DrainExpired observing this deadline and this call
	// running, in which case CancelIoEx harmlessly fails (ERROR_NOT_FOUND).
	_ = windows.CancelIoEx(data.ev.Handle, &data.ev.Overlapped)
}

func (ss *SingleSelector) wakeBackend() error {
	return submitIOCPWakeup(ss.iocp)
}

func (ss *SingleSelector) closeBackend() error {
	return windows.CloseHandle(ss.iocp)
}
