//go:build darwin

package reactor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// SingleSelector is one independent kqueue-backed shard: its own kqueue
// instance, its own self-pipe wakeup signal, its own TimerList, and a
// dynamically-growing table from fd to the EventData currently registered
// for it. Unlike the epoll backend's fixed maxFDs array, the fd table here
// grows on demand, following this codebase's existing Darwin poller's
// growth pattern.
type SingleSelector struct { // betteralign:ignore
	id              int
	state           shardState
	timers          *TimerList
	logger          Logger
	limiter         *invariantLimiter
	eventBufferSize int

	kq       int
	wake     wakePipe
	eventBuf []unix.Kevent_t

	// regs counts live registrations, so callers (and tests) can confirm
	// every AddIO/DelFD pair for a given fd touched this shard and only
	// this shard.
	regs atomic.Int64

	fdMu sync.RWMutex
	fds  []*EventData
}

func newSingleSelector(id int, bufSize int, logger Logger, limiter *invariantLimiter) (*SingleSelector, error) {
	if bufSize <= 0 {
		bufSize = 256
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	ss := &SingleSelector{
		id:              id,
		timers:          NewTimerList(),
		logger:          logger,
		limiter:         limiter,
		eventBufferSize: bufSize,
		kq:              kq,
		eventBuf:        make([]unix.Kevent_t, bufSize),
	}

	wp, err := createWakePipe()
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	ss.wake = wp

	wakeEvent := unix.Kevent_t{
		Ident:  uint64(wp.readFD),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wakeEvent}, nil, nil); err != nil {
		_ = wp.close()
		_ = unix.Close(kq)
		return nil, err
	}

	return ss, nil
}

// growFDTable grows the fd table so index fd is addressable, following the
// fd*2+1 growth strategy this codebase's Darwin poller has always used.
func (ss *SingleSelector) growFDTable(fd int) {
	if fd < len(ss.fds) {
		return
	}
	newLen := fd*2 + 1
	grown := make([]*EventData, newLen)
	copy(grown, ss.fds)
	ss.fds = grown
}

// registerIO arms fd for the interest in ev.Interest. kqueue events are
// naturally one-shot-able via EV_ONESHOT, matching the same at-most-one-
// notification-per-arming contract the epoll backend gets from
// EPOLLET|EPOLLONESHOT, which is what the publish-then-recheck protocol in
// eventdata.go depends on.
func (ss *SingleSelector) registerIO(ev *EventData) error {
	fd := ev.FD
	if fd < 0 {
		return ErrShardOutOfRange
	}

	ss.fdMu.Lock()
	ss.growFDTable(fd)
	if ss.fds[fd] != nil {
		ss.fdMu.Unlock()
		return ErrAlreadyRegistered
	}
	ss.fds[fd] = ev
	ss.fdMu.Unlock()

	kevents := keventsFor(fd, ev.Interest, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
	if _, err := unix.Kevent(ss.kq, kevents, nil, nil); err != nil {
		ss.fdMu.Lock()
		ss.fds[fd] = nil
		ss.fdMu.Unlock()
		return err
	}
	ss.regs.Add(1)
	return nil
}

// rearm re-arms interest for another round of notifications on a
// previously-registered fd.
func (ss *SingleSelector) rearm(ev *EventData) error {
	kevents := keventsFor(ev.FD, ev.Interest, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
	_, err := unix.Kevent(ss.kq, kevents, nil, nil)
	return err
}

func (ss *SingleSelector) unregisterFD(fd int) error {
	ss.fdMu.Lock()
	if fd < 0 || fd >= len(ss.fds) || ss.fds[fd] == nil {
		ss.fdMu.Unlock()
		return ErrNotRegistered
	}
	ev := ss.fds[fd]
	ss.fds[fd] = nil
	ss.fdMu.Unlock()
	ss.regs.Add(-1)

	kevents := keventsFor(fd, ev.Interest, unix.EV_DELETE)
	// Best effort: the kernel may have already dropped a one-shot
	// registration once it fired, in which case EV_DELETE harmlessly
	// fails with ENOENT.
	_, _ = unix.Kevent(ss.kq, kevents, nil, nil)
	return nil
}

func (ss *SingleSelector) pollOnce(timeoutMs int) ([]rawEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(ss.kq, nil, ss.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	out := make([]rawEvent, 0, n)
	for i := 0; i < n; i++ {
		kev := ss.eventBuf[i]
		fd := int(kev.Ident)
		if fd == ss.wake.readFD {
			ss.wake.drain()
			out = append(out, rawEvent{wakeup: true})
			continue
		}

		ss.fdMu.RLock()
		var ev *EventData
		if fd >= 0 && fd < len(ss.fds) {
			ev = ss.fds[fd]
		}
		ss.fdMu.RUnlock()
		if ev == nil {
			// Narrow race between unregisterFD and kevent already having
			// returned this notification -- benign, not an invariant
			// violation.
			continue
		}

		events := keventToEvents(kev)
		var opErr error
		if kev.Flags&unix.EV_ERROR != 0 {
			opErr = unix.Errno(kev.Data)
		} else if events&EventError != 0 {
			opErr = errFromErrno(fd)
		}
		out = append(out, rawEvent{ev: ev, events: events, err: opErr})
	}
	return out, nil
}

func (ss *SingleSelector) wakeBackend() error {
	return ss.wake.submit()
}

func (ss *SingleSelector) closeBackend() error {
	_ = ss.wake.close()
	return unix.Close(ss.kq)
}

func keventsFor(fd int, interest IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if interest&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if interest&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

func keventToEvents(kev unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_EOF != 0 {
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
