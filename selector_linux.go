//go:build linux

package reactor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDs bounds the direct-indexed registration table. Direct indexing
// (over a map) is the same tradeoff this codebase's epoll backend has
// always made: O(1) lookup with no hashing, at the cost of a fixed upper
// bound on fd values.
const maxFDs = 65536

// SingleSelector is one independent epoll-backed shard: its own epoll
// instance, its own wakeup eventfd, its own TimerList, and a direct-index
// table from fd to the EventData currently registered for it.
type SingleSelector struct { // betteralign:ignore
	id              int
	state           shardState
	timers          *TimerList
	logger          Logger
	limiter         *invariantLimiter
	eventBufferSize int

	epfd     int
	wakeFD   int
	eventBuf []unix.EpollEvent

	// regs counts live registrations, so callers (and tests) can confirm
	// every AddIO/DelFD pair for a given fd touched this shard and only
	// this shard.
	regs atomic.Int64

	fdMu sync.RWMutex
	fds  [maxFDs]*EventData
}

func newSingleSelector(id int, bufSize int, logger Logger, limiter *invariantLimiter) (*SingleSelector, error) {
	if bufSize <= 0 {
		bufSize = 256
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	ss := &SingleSelector{
		id:              id,
		timers:          NewTimerList(),
		logger:          logger,
		limiter:         limiter,
		eventBufferSize: bufSize,
		epfd:            epfd,
		eventBuf:        make([]unix.EpollEvent, bufSize),
	}

	wakeFD, err := createWakeFd()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	ss.wakeFD = wakeFD
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		_ = unix.Close(wakeFD)
		_ = unix.Close(epfd)
		return nil, err
	}

	return ss, nil
}

// registerIO arms fd with EPOLLIN/EPOLLOUT (per ev.Interest),
// edge-triggered and one-shot: exactly one notification is delivered per
// arming, which is what makes the fd-table lookup of the EventData and the
// publish-then-recheck protocol sound -- there is never a second,
// unsolicited notification to race against a Reset.
func (ss *SingleSelector) registerIO(ev *EventData) error {
	fd := ev.FD
	if fd < 0 || fd >= maxFDs {
		return ErrShardOutOfRange
	}

	ss.fdMu.Lock()
	if ss.fds[fd] != nil {
		ss.fdMu.Unlock()
		return ErrAlreadyRegistered
	}
	ss.fds[fd] = ev
	ss.fdMu.Unlock()

	op := unix.EPOLL_CTL_ADD
	event := &unix.EpollEvent{
		Events: epollEventsFor(ev.Interest) | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(ss.epfd, op, fd, event); err != nil {
		ss.fdMu.Lock()
		ss.fds[fd] = nil
		ss.fdMu.Unlock()
		return err
	}
	ss.regs.Add(1)
	return nil
}

// rearm re-arms a one-shot registration for another round of interest,
// used when a single fd is registered more than once across its lifetime
// (e.g. a socket that waits on read readiness multiple times).
func (ss *SingleSelector) rearm(ev *EventData) error {
	event := &unix.EpollEvent{
		Events: epollEventsFor(ev.Interest) | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(ev.FD),
	}
	return unix.EpollCtl(ss.epfd, unix.EPOLL_CTL_MOD, ev.FD, event)
}

func (ss *SingleSelector) unregisterFD(fd int) error {
	if fd < 0 || fd >= maxFDs {
		return ErrNotRegistered
	}
	ss.fdMu.Lock()
	if ss.fds[fd] == nil {
		ss.fdMu.Unlock()
		return ErrNotRegistered
	}
	ss.fds[fd] = nil
	ss.fdMu.Unlock()
	ss.regs.Add(-1)
	_ = unix.EpollCtl(ss.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return nil
}

func (ss *SingleSelector) pollOnce(timeoutMs int) ([]rawEvent, error) {
	n, err := unix.EpollWait(ss.epfd, ss.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	out := make([]rawEvent, 0, n)
	for i := 0; i < n; i++ {
		fd := int(ss.eventBuf[i].Fd)
		if fd == ss.wakeFD {
			drainWakeFd(ss.wakeFD)
			out = append(out, rawEvent{wakeup: true})
			continue
		}

		ss.fdMu.RLock()
		var ev *EventData
		if fd >= 0 && fd < maxFDs {
			ev = ss.fds[fd]
		}
		ss.fdMu.RUnlock()
		if ev == nil {
			// Fd was unregistered between epoll_wait returning this
			// event and us looking it up -- a normal race under
			// concurrent DelFD, not an invariant violation.
			continue
		}

		events := epollEventsTo(ss.eventBuf[i].Events)
		var opErr error
		if events&EventError != 0 {
			opErr = errFromErrno(fd)
		}
		out = append(out, rawEvent{ev: ev, events: events, err: opErr})
	}
	return out, nil
}

func (ss *SingleSelector) wakeBackend() error {
	return submitWakeup(ss.wakeFD)
}

func (ss *SingleSelector) closeBackend() error {
	_ = closeWakeFd(ss.wakeFD)
	return unix.Close(ss.epfd)
}

func epollEventsFor(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollEventsTo(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

func errFromErrno(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v == 0 {
		return nil
	}
	return unix.Errno(v)
}
