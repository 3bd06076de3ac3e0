package reactor

// ioFlag values track the state of the publish-then-recheck protocol an
// EventSource must follow around a single I/O attempt. They exist to close
// the race between an edge-triggered readiness notification arriving
// before a coroutine has finished publishing itself, and a coroutine
// publishing itself after readiness has already come and gone.
const (
	ioFlagIdle uint32 = iota
	// ioFlagArrived marks that the OS already signalled this EventData
	// since it was last reset, before any coroutine published itself.
	ioFlagArrived
	// ioFlagWaiting marks that a coroutine has published itself and is
	// waiting on the next OS notification or timer expiry.
	ioFlagWaiting
)

// EventData is the per-operation control block threaded through every
// layer of the reactor. Exactly one exists per in-flight I/O attempt. On
// IOCP its address is itself the token the OS hands back on the poller
// thread; on epoll/kqueue the OS hands back the fd, which the shard's fd
// table maps to the registered *EventData. Either way EventData must never
// move once registered -- callers allocate it on the heap and keep a
// stable pointer to it for the operation's entire lifetime. Its fields are defined per
// platform (eventdata_unix.go, eventdata_windows.go) since the backend
// state differs (fd + interest for epoll/kqueue, an embedded OVERLAPPED
// for IOCP) but every platform's struct carries the same co/shard/timer/
// flag fields, which is all the methods below ever touch.

// Reset restores an EventData to its unpublished, untimed state so it can
// be reused for a subsequent I/O attempt on the same fd. Callers must only
// call Reset once they are certain no coroutine is parked and no timer is
// armed -- typically right after a successful take() or DrainExpired
// delivery.
func (ev *EventData) Reset() {
	ev.flag.Store(ioFlagIdle)
	ev.co.v.Store(nil)
	ev.timer.Store(nil)
}

// markArrived records that the OS signalled readiness/completion for this
// EventData before any coroutine reached the publish step. It returns true
// if a previously-published coroutine should be resumed immediately
// (ioFlagWaiting was already set when markArrived ran), in which case the
// caller is responsible for taking and resuming it.
func (ev *EventData) markArrived() (alreadyWaiting bool) {
	return ev.flag.Swap(ioFlagArrived) == ioFlagWaiting
}

// publish parks co against this EventData following the
// publish-then-recheck protocol: it stores co, then checks whether the OS
// notification already arrived in the window before the store was
// visible. If it had, publish takes the now-stale ioFlagArrived state,
// clears it, and returns true so the caller self-schedules co instead of
// leaving it to be woken by a notification that already happened.
func (ev *EventData) publish(co Coroutine) (arrivedAlready bool) {
	ev.co.publish(co)
	return ev.flag.Swap(ioFlagWaiting) == ioFlagArrived
}

// cancelTimer removes any timer currently armed on this EventData. It is
// idempotent and safe to call even if no timer was ever set.
func (ev *EventData) cancelTimer() {
	if h := ev.timer.Swap(nil); h != nil {
		h.Remove()
	}
}

// armTimer installs h as the EventData's current timer handle, replacing
// (and cancelling) whatever was previously armed.
func (ev *EventData) armTimer(h *TimerHandle) {
	if old := ev.timer.Swap(h); old != nil && old != h {
		old.Remove()
	}
}
