package reactor

import "time"

// rawEvent is what a platform backend's pollOnce yields for each dequeued
// OS notification. wakeup is set for the shard's own wake signal (never
// paired with a non-nil ev); ev is nil only for wakeup entries. err is the
// OS-reported error for the event: the failed overlapped operation's status
// on IOCP, or the socket's pending error (SO_ERROR, or EV_ERROR's errno on
// kqueue) when epoll/kqueue flag an error condition.
type rawEvent struct {
	wakeup bool
	ev     *EventData
	events IOEvents
	err    error
}

// Selector owns a fixed set of independent SingleSelector shards. Callers
// assign I/O operations (and the fd/handle backing them) to a shard,
// typically by hashing the fd, and thereafter only ever interact with that
// one shard for that operation -- Selector itself does no cross-shard
// coordination beyond routing calls to the right shard by index.
type Selector struct {
	shards []*SingleSelector
}

// MaxShards bounds the shard count a Selector may be built with. Larger
// deployments should still shard within this bound; the per-shard TimerList
// only sees modest insert contention well before it is reached.
const MaxShards = 128

// New creates a Selector with nShards independent shards, each backed by
// its own OS polling instance (epoll/kqueue/IOCP) and timer list.
func New(nShards int, opts ...SelectorOption) (*Selector, error) {
	if nShards <= 0 || nShards > MaxShards {
		return nil, ErrTooManyShards
	}
	cfg, err := resolveSelectorOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter := newInvariantLimiter(cfg.invariantRates)

	shards := make([]*SingleSelector, nShards)
	for i := range shards {
		ss, err := newSingleSelector(i, cfg.eventBufferSize, cfg.logger, limiter)
		if err != nil {
			for _, prior := range shards[:i] {
				_ = prior.Close()
			}
			return nil, err
		}
		shards[i] = ss
	}
	return &Selector{shards: shards}, nil
}

// NumShards returns the number of shards this Selector was built with.
func (s *Selector) NumShards() int { return len(s.shards) }

// ShardFor hashes fd onto one of this Selector's shards. Registration
// calls (AddIO, AddSocket) for a given fd should always be routed to this
// shard, and every subsequent call concerning that fd (DelFD, AddIOTimer)
// must target the same shard -- the reactor has no mechanism to migrate a
// registration between shards.
func (s *Selector) ShardFor(fd int) int {
	return shardHash(fd, len(s.shards))
}

// shardHash is split out so tests can verify the exact function used for
// routing, independent of NumShards.
func shardHash(fd, n int) int {
	if n <= 1 {
		return 0
	}
	h := uint64(fd)
	// multiplicative hashing with the Fibonacci constant, reduced mod n.
	// The reduction keeps the low bits of the product, so for a
	// power-of-two n the result is a fixed permutation of fd mod n.
	h *= 11400714819323198485
	return int(h % uint64(n))
}

func (s *Selector) shard(id int) (*SingleSelector, error) {
	if id < 0 || id >= len(s.shards) {
		return nil, ErrShardOutOfRange
	}
	return s.shards[id], nil
}

// Select blocks the calling goroutine -- which should be the single
// dedicated worker thread for this shard -- until at least one of: an OS
// readiness/completion notification arrives, a timer expires, Wakeup is
// called, or timeout elapses. A negative timeout blocks indefinitely.
// It returns the shard's next pending timer deadline (the zero time if
// none is pending), which the caller should feed back as the ceiling on
// its next Select timeout.
//
// Dispatch algorithm per notification, matching the reactor's delivery
// contract exactly:
//  1. Compute the wait timeout as min(timeout, time until the shard's
//     earliest pending timer).
//  2. Block in the platform poll syscall.
//  3. For each dequeued notification that isn't the shard's own wakeup
//     signal, resolve it to its EventData and cancel any armed timer,
//     then attempt to take the parked coroutine. If one was parked,
//     resume it (after an optional Prefetch, and after handing it any OS
//     error via SetCoParam); if Resume reports that the coroutine issued
//     another I/O operation before yielding again, Subscribe the returned
//     EventSource onto it (tail re-subscription) instead of dropping it.
//     If none was parked yet, mark the EventData as having arrived, so a
//     coroutine publishing a moment later self-schedules instead of
//     waiting on a readiness edge that will never come again.
//  4. Drain every timer whose deadline has passed, delivering ErrTimeout
//     to each one that still has a coroutine parked (one that lost the
//     race to an OS completion is, by construction, already gone).
//  5. Return the next pending timer deadline to the caller once both
//     steps are done, regardless of whether anything was actually
//     delivered -- a lone Wakeup call with nothing else pending is a
//     valid, silent reason to return.
func (s *Selector) Select(shardID int, timeout time.Duration) (time.Time, error) {
	ss, err := s.shard(shardID)
	if err != nil {
		return time.Time{}, err
	}
	return ss.Select(timeout)
}

// AddIO registers ev (and the fd/handle it wraps) with the given shard for
// readiness/completion notification. On the epoll/kqueue backends this
// arms edge-triggered, one-shot interest; on IOCP the handle association
// is made once by AddSocket, and AddIO registers nothing: it only checks
// that the shard is open and that ev.Handle was already associated
// (ErrNotRegistered otherwise).
func (s *Selector) AddIO(shardID int, ev *EventData) error {
	ss, err := s.shard(shardID)
	if err != nil {
		return err
	}
	return ss.addIO(ev)
}

// DelFD removes fd's registration from the given shard. It is idempotent:
// calling it twice, or calling it for an fd never registered, both return
// ErrNotRegistered rather than panicking, since callers may race a
// connection close against an in-flight completion.
func (s *Selector) DelFD(shardID int, fd int) error {
	ss, err := s.shard(shardID)
	if err != nil {
		return err
	}
	return ss.delFD(fd)
}

// AddIOTimer arms a deadline on ev, bound to the given shard's TimerList.
// If the I/O operation completes first, the EventSource should cancel the
// timer itself by holding onto nothing further -- EventData.cancelTimer is
// called automatically by the dispatch path when an OS notification wins.
func (s *Selector) AddIOTimer(shardID int, ev *EventData, timeout time.Duration) error {
	ss, err := s.shard(shardID)
	if err != nil {
		return err
	}
	return ss.addTimer(ev, timeout)
}

// Wakeup interrupts a blocked Select call on the given shard. It is the
// only Selector method intended to be called cross-thread while another
// goroutine is inside Select for the same shard; every other shard method
// is expected to be called only from that shard's own worker, except for
// registration calls explicitly documented as cross-thread safe (AddIO,
// AddIOTimer, DelFD).
func (s *Selector) Wakeup(shardID int) error {
	ss, err := s.shard(shardID)
	if err != nil {
		return err
	}
	return ss.wake()
}

// Close tears down every shard, releasing their OS polling instances.
// Close is idempotent per shard.
func (s *Selector) Close() error {
	var firstErr error
	for _, ss := range s.shards {
		if err := ss.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Select is the shared dispatch loop described on Selector.Select. The
// platform-specific pieces (pollOnce, registerIO, unregisterFD,
// wakeBackend, closeBackend) live in selector_linux.go, selector_darwin.go
// and selector_windows.go; everything else -- timeout clamping against
// the timer list, dispatching each notification, and draining expired
// timers -- is identical across all three backends.
func (ss *SingleSelector) Select(timeout time.Duration) (time.Time, error) {
	if ss.state.Closing() {
		return time.Time{}, ErrClosed
	}

	timeoutMs := durationToMillis(timeout)
	if deadline, ok := ss.timers.NextDeadline(); ok {
		untilDeadline := time.Until(deadline)
		if untilDeadline < 0 {
			untilDeadline = 0
		}
		ms := durationToMillis(untilDeadline)
		if timeoutMs < 0 || ms < timeoutMs {
			timeoutMs = ms
		}
	}

	events, err := ss.pollOnce(timeoutMs)
	if err != nil {
		logPollError(ss.log(), ss.id, err)
		return time.Time{}, err
	}

	for _, e := range events {
		if e.wakeup {
			continue
		}
		ss.dispatch(e.ev, e.events, e.err)
	}

	ss.timers.DrainExpired(time.Now(), ss.handleTimerExpiry)

	next, _ := ss.timers.NextDeadline()
	return next, nil
}

// log resolves the logger for this shard: the one supplied via WithLogger
// at construction, or else whatever SetStructuredLogger most recently
// installed -- resolved per call so the global can be swapped at runtime.
func (ss *SingleSelector) log() Logger {
	if ss.logger != nil {
		return ss.logger
	}
	return getGlobalLogger()
}

// durationToMillis converts a timeout to the millisecond form the
// platform poll syscalls expect, preserving "negative means block
// indefinitely" and clamping zero/sub-millisecond positive durations up
// to at least 0 (never negative, never silently blocking).
func durationToMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return int(ms)
}

// addIO validates shard liveness and delegates to the platform backend.
func (ss *SingleSelector) addIO(ev *EventData) error {
	if ss.state.Closing() {
		return ErrClosed
	}
	return ss.registerIO(ev)
}

// delFD validates shard liveness and delegates to the platform backend.
func (ss *SingleSelector) delFD(fd int) error {
	if ss.state.Closing() {
		return ErrClosed
	}
	return ss.unregisterFD(fd)
}

// addTimer arms a deadline on ev using this shard's TimerList. If the new
// timer became the earliest pending deadline, the shard is woken so its
// blocked Select call re-enters and recomputes its wait timeout against
// the new horizon instead of oversleeping past it.
func (ss *SingleSelector) addTimer(ev *EventData, timeout time.Duration) error {
	if ss.state.Closing() {
		return ErrClosed
	}
	deadline := time.Now().Add(timeout)
	handle, isEarliest := ss.timers.Add(deadline, TimerData{ev: ev})
	ev.armTimer(handle)
	logTimerScheduled(ss.log(), ss.id, timeout)
	if isEarliest {
		_ = ss.wakeBackend()
	}
	return nil
}

// wake delegates to the platform backend's wakeup primitive.
func (ss *SingleSelector) wake() error {
	if ss.state.Closing() {
		return ErrClosed
	}
	return ss.wakeBackend()
}

// Close tears down this shard's OS polling instance. Safe to call more
// than once; only the first call does any work.
func (ss *SingleSelector) Close() error {
	if !ss.state.TryTransition(StateOpen, StateClosing) {
		return nil
	}
	err := ss.closeBackend()
	ss.state.Store(StateClosed)
	return err
}

// dispatch resolves one non-wakeup rawEvent to its EventData and runs the
// completion side of the delivery protocol described on Select.
func (ss *SingleSelector) dispatch(ev *EventData, events IOEvents, osErr error) {
	ev.cancelTimer()
	if co, ok := ev.co.take(); ok {
		ev.flag.Store(ioFlagIdle)
		resumeCoroutine(co, osErr)
		return
	}
	// No coroutine published yet: record the arrival so the EventSource's
	// publish-then-recheck path self-schedules instead of blocking on an
	// edge-triggered notification that has already come and gone.
	if ev.markArrived() {
		// A coroutine published itself between the failed take above and
		// markArrived; its publish saw no arrival, so deliver it here.
		if co, ok := ev.co.take(); ok {
			ev.flag.Store(ioFlagIdle)
			resumeCoroutine(co, osErr)
			return
		}
		ss.maybeReportRace(true)
	}
}

// maybeReportRace logs an internal-invariant violation if alreadyWaiting
// is true. dispatch calls it only when markArrived observed ioFlagWaiting
// but the coSlot was nonetheless empty: publish stores the coroutine
// before it sets ioFlagWaiting, so the slot should have held it.
func (ss *SingleSelector) maybeReportRace(alreadyWaiting bool) {
	if !alreadyWaiting {
		return
	}
	ss.limiter.reportInvariant(ss.log(), ss.id, &InvariantError{
		Shard:   ss.id,
		Message: "markArrived observed a published coroutine but the slot was empty",
	})
}

// resumeCoroutine runs the optional Prefetch/SetCoParam hooks, hands
// control to Resume, and performs tail re-subscription: if Resume
// reports that co issued another I/O operation
// before yielding again, the returned EventSource's Subscribe is invoked
// with the same co, rather than treating co as terminated.
func resumeCoroutine(co Coroutine, err error) {
	if pf, ok := co.(Prefetcher); ok {
		pf.Prefetch()
	}
	if err != nil {
		if ps, ok := co.(ParamSetter); ok {
			ps.SetCoParam(err)
		}
	}
	if src, ok := co.Resume(); ok {
		src.Subscribe(co)
	}
}

// handleTimerExpiry is the TimerList.DrainExpired callback used by
// Select; it is implemented per platform since the two backend families
// disagree on what a timer expiry should do. The readiness-model backends
// (epoll and kqueue, timerexpiry_unix.go) resume the coroutine with
// ErrTimeout directly -- there is no outstanding kernel operation to worry
// about, since epoll/kqueue only report readiness, not completion. The
// completion-model backend (selector_windows.go) must instead cancel the
// still-in-flight overlapped I/O and let the cancellation surface through
// the normal completion path, since the kernel may still be writing into
// memory the coroutine owns.
