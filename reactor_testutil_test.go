//go:build linux || darwin

package reactor

import (
	"sync"
	"time"
)

// chanCoroutine is the minimal goroutine+channel stand-in for the external
// coroutine runtime this package never ships (the coroutine
// implementation is an external collaborator). Resume is called at most
// once per Subscribe, matching the Coroutine contract; resumeCh receives
// the error (if any) SetCoParam stashed, or nil.
type chanCoroutine struct {
	mu       sync.Mutex
	err      error
	resumeCh chan error
	prefetch int
}

func newChanCoroutine() *chanCoroutine {
	return &chanCoroutine{resumeCh: make(chan error, 1)}
}

func (c *chanCoroutine) SetCoParam(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *chanCoroutine) Prefetch() {
	c.mu.Lock()
	c.prefetch++
	c.mu.Unlock()
}

func (c *chanCoroutine) Resume() (EventSource, bool) {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	c.resumeCh <- err
	return nil, false
}

// waitResumed blocks until Resume is called, or fails the test via the
// returned bool if timeout elapses first.
func (c *chanCoroutine) waitResumed(timeout time.Duration) (error, bool) {
	select {
	case err := <-c.resumeCh:
		return err, true
	case <-time.After(timeout):
		return nil, false
	}
}

// runShard drives Select on shardID in a loop until stop is closed. Tests
// use this to simulate the one-worker-thread-per-shard model.
func runShard(sel *Selector, shardID int, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		_, _ = sel.Select(shardID, 50*time.Millisecond)
	}
}
