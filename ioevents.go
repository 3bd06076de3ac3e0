package reactor

// IOEvents is a platform-independent bitmask of the readiness conditions a
// registration is interested in, or that a notification reports. Only the
// readiness-model backends (epoll, kqueue) use it directly; the
// completion-model backend (IOCP) doesn't multiplex interest this way: it
// reports EventRead|EventWrite for every successful completion, whatever
// the operation, and no event bits for a failed one (the failure is carried
// as the event's error instead).
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is readable (epoll/kqueue).
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is writable (epoll/kqueue).
	EventWrite
	// EventError indicates an error condition on the registration.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)
