//go:build linux || darwin

package reactor

// handleTimerExpiry resumes the parked coroutine with ErrTimeout. Losing
// the take() race here means an OS completion already claimed the
// coroutine; there is nothing left to do. Unlike the Windows completion
// model, epoll/kqueue notifications carry no outstanding kernel-owned
// buffer to protect, so it's safe to resume immediately rather than
// cancelling anything first.
func (ss *SingleSelector) handleTimerExpiry(data TimerData) {
	if data.ev == nil {
		return
	}
	if co, ok := data.ev.co.take(); ok {
		data.ev.flag.Store(ioFlagIdle)
		logTimerFired(ss.log(), ss.id)
		resumeCoroutine(co, ErrTimeout)
	}
}
