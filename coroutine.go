package reactor

// Coroutine is the external collaborator the reactor resumes when an I/O
// operation completes or times out. The reactor never constructs or
// switches coroutine stacks itself; it only ever holds a single pointer to
// one per in-flight operation and hands it back to the runtime that owns it.
type Coroutine interface {
	// Resume continues the coroutine from the point it parked. Exactly one
	// call to Resume is ever made per successful Subscribe, and the reactor
	// guarantees at most one such call even when an OS completion and a
	// timer expiration race for the same EventData.
	//
	// If the coroutine issues another I/O operation before yielding again,
	// Resume returns the EventSource it subscribed to and true; the reactor
	// calls Subscribe(co) on it in turn (tail re-subscription), rather than
	// handing control back to whatever scheduled the original Resume. If
	// the coroutine terminated instead, Resume returns (nil, false).
	Resume() (next EventSource, ok bool)
}

// Prefetcher is an optional interface a Coroutine may implement to hint
// that its stack should be prefetched into cache before Resume is called.
// The reactor type-asserts for this on the hot dispatch path and calls it,
// if present, immediately before Resume.
type Prefetcher interface {
	Prefetch()
}

// ParamSetter is an optional interface a Coroutine may implement to accept
// a pending error observable on its next Resume call. Scheduler
// implementations use this to hand a timeout or OS error to the coroutine
// without changing the Resume signature.
type ParamSetter interface {
	SetCoParam(err error)
}

// EventSource is implemented by I/O request objects (TCPConnector and
// similar) that park a Coroutine against some readiness or completion
// condition. Subscribe must follow the publish-then-recheck protocol
// described for the connect operation: register any timer, publish co to
// the relevant EventData, then re-check whether the condition already
// holds and self-schedule if so. This is the only way to close the race
// between an edge-triggered readiness notification and a coroutine
// publishing itself a moment too late to observe it.
type EventSource interface {
	Subscribe(co Coroutine)
}

// Scheduler is the interface the reactor's external I/O request objects use
// to hand a coroutine back to a general-purpose run queue, rather than
// resuming it inline on the poller thread. Nothing in this package calls
// it: Selector and TCPConnector both resume coroutines inline.
type Scheduler interface {
	ScheduleIO(co Coroutine)
}
