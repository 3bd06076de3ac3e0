//go:build linux || darwin

package reactor

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// TCPConnector is this package's one concrete, illustrative I/O request: a
// non-blocking TCP connect driven through a Selector shard, implementing
// the EventSource publish-then-recheck protocol end to end. It exists
// mainly to demonstrate the pattern every other I/O request in a coroutine
// runtime built on this package would follow -- read, write, accept -- all
// of which reduce to "issue the syscall, and if it would block, park on an
// EventData and let the selector resume you."
type TCPConnector struct {
	sel     *Selector
	shardID int
	ev      *EventData
	fd      int
	sa      unix.Sockaddr
	timeout time.Duration

	registered bool
	done       bool
	err        error
}

// defaultConnectTimeout bounds a connect whose caller never supplied its
// own deadline via Wait. A connect with no timer at all would otherwise
// park forever against an unroutable address.
const defaultConnectTimeout = 10 * time.Second

// DialTCP starts a non-blocking connect to addr on the given shard. The
// fast path -- the connect syscall succeeding or failing immediately,
// without ever touching the selector -- is handled entirely inside DialTCP;
// Subscribe is only reached when the connect is still in progress.
func DialTCP(sel *Selector, shardID int, addr *net.TCPAddr) (*TCPConnector, error) {
	fd, sa, pending, err := dialNonblocking(addr)
	if err != nil {
		return nil, err
	}

	c := &TCPConnector{sel: sel, shardID: shardID, fd: fd, sa: sa, timeout: defaultConnectTimeout}
	c.ev = NewEventData(shardID, fd, EventWrite)
	if !pending {
		c.done = true
	}
	return c, nil
}

// Wait blocks the calling coroutine's caller -- in practice, the coroutine
// runtime itself, via Subscribe -- until the connect finishes or timeout
// elapses, then reports the outcome. A zero timeout means wait forever.
//
// Wait is the one place this type talks to a Coroutine directly: it adapts
// a plain channel-based wait into the Subscribe contract, so callers that
// don't have their own coroutine abstraction can still use TCPConnector.
func (c *TCPConnector) Wait(timeout time.Duration) (net.Conn, error) {
	if c.done {
		return c.result()
	}

	c.timeout = timeout
	done := make(chan struct{})
	co := &waitCoroutine{ch: done}
	c.Subscribe(co)
	<-done
	if co.err != nil {
		c.err = co.err
	}
	c.done = true
	return c.result()
}

// Subscribe implements EventSource: it arms the fd for write readiness
// (registering on the first call, re-arming the one-shot interest on
// every subsequent call -- see arm), registers the connect deadline, and
// then publishes a connectRelay wrapping co, using EventData.publish's
// return value to close the race between the OS notification and the
// coroutine parking itself -- if the notification already arrived before
// publish ran, Subscribe resumes the relay immediately instead of leaving
// it parked on an edge that will never re-fire. Timer first, publish
// second: the moment the relay is published, either terminal arm may take
// it, and a timer armed after that point could fire against an EventData
// whose operation has already been delivered.
func (c *TCPConnector) Subscribe(co Coroutine) {
	if c.done {
		resumeCoroutine(co, c.err)
		return
	}

	if err := c.arm(); err != nil {
		resumeCoroutine(co, err)
		return
	}

	if c.timeout > 0 {
		if err := c.sel.AddIOTimer(c.shardID, c.ev, c.timeout); err != nil {
			resumeCoroutine(co, err)
			return
		}
	}

	relay := &connectRelay{c: c, co: co}
	if arrivedAlready := c.ev.publish(relay); arrivedAlready {
		// The connect already resolved between the last probe and this
		// registration -- don't wait on a readiness edge that has
		// already come and gone.
		c.ev.cancelTimer()
		if taken, ok := c.ev.co.take(); ok {
			c.ev.flag.Store(ioFlagIdle)
			resumeCoroutine(taken, nil)
		}
	}
}

// arm registers c.ev for write readiness on the first call, and re-arms
// its one-shot interest on every subsequent call. A re-probe that comes
// back EINPROGRESS/EALREADY (connectRelay.Resume, below) must re-arm
// before re-subscribing: EPOLLONESHOT/EV_ONESHOT interest is consumed by
// the notification that woke the prior Subscribe, and re-arming is the
// responsibility of the next request on the same fd -- simply calling
// AddIO again is a silent no-op against an fd this shard already has
// bookkeeping for, which would leave the retry parked on a registration
// that can never fire again.
func (c *TCPConnector) arm() error {
	ss, err := c.sel.shard(c.shardID)
	if err != nil {
		return err
	}
	if !c.registered {
		if err := ss.addIO(c.ev); err != nil {
			return err
		}
		c.registered = true
		return nil
	}
	return ss.rearm(c.ev)
}

// finish records the connect's outcome and clears the shard's
// registration for the fd. Called from connectRelay.Resume, which runs on
// every path that can wake a parked connect: a normal OS completion, the
// race branch above, and a timer expiry.
func (c *TCPConnector) finish(err error) {
	if err == errConnectInProgress {
		return
	}
	c.done = true
	c.err = err
	c.teardown()
}

// teardown removes c.fd's registration from the shard, so neither the fd
// table nor the registration counter outlive the operation -- the fd
// number may be recycled by the next socket the moment it is closed, and
// a stale entry would make that socket's own registration fail.
func (c *TCPConnector) teardown() {
	if c.registered {
		_ = c.sel.DelFD(c.shardID, c.fd)
		c.registered = false
	}
}

// connectRelay sits between the selector's resume path and the caller's
// Coroutine. epoll and kqueue report write-readiness, not the connect
// outcome itself, so whichever event resumes a parked connect -- a real
// completion, the Subscribe race branch, or a timeout -- must run through
// a connect re-probe before the caller sees a result; without this
// indirection a failed connect (e.g. connection refused) would surface as
// success on the normal completion path.
type connectRelay struct {
	c   *TCPConnector
	co  Coroutine
	err error
}

func (r *connectRelay) Prefetch() {
	if pf, ok := r.co.(Prefetcher); ok {
		pf.Prefetch()
	}
}

func (r *connectRelay) SetCoParam(err error) {
	r.err = err
}

// Resume re-probes the connect outcome (unless a timer or OS error was
// already stashed via SetCoParam) and treats a still-pending
// EINPROGRESS/EALREADY result as "yield again" rather than
// completion: it re-subscribes the original coroutine instead of handing
// it a premature result. relay always reports itself as terminated to the
// reactor's own tail-resubscription mechanism (returning nil, false),
// since it fully owns re-subscribing both itself and r.co internally.
func (r *connectRelay) Resume() (EventSource, bool) {
	if r.err != nil {
		r.c.finish(r.err)
	} else {
		connErr := probeConnect(r.c.fd, r.c.sa)
		if connErr == errConnectInProgress {
			r.c.Subscribe(r.co)
			return nil, false
		}
		r.c.finish(connErr)
	}
	if ps, ok := r.co.(ParamSetter); ok {
		ps.SetCoParam(r.c.err)
	}
	if src, ok := r.co.Resume(); ok {
		src.Subscribe(r.co)
	}
	return nil, false
}

func (c *TCPConnector) result() (net.Conn, error) {
	c.teardown()
	if c.err != nil {
		_ = closeFD(c.fd)
		return nil, c.err
	}
	return newFDConn(c.fd), nil
}

// waitCoroutine adapts the Coroutine/ParamSetter contract onto a plain
// channel, for callers using TCPConnector.Wait directly rather than their
// own coroutine runtime.
type waitCoroutine struct {
	ch  chan struct{}
	err error
}

func (w *waitCoroutine) Resume() (EventSource, bool) { close(w.ch); return nil, false }
func (w *waitCoroutine) SetCoParam(err error)         { w.err = err }
