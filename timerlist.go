package reactor

import (
	"container/heap"
	"sync"
	"time"
)

// TimerData is the payload carried by a timer node. It holds a back
// pointer to the EventData whose operation the timer bounds, so that
// DrainExpired can deliver the coroutine without a second lookup. The back
// pointer is nulled (by Remove, under the same lock that would otherwise
// race a concurrent expiry) before the node is unlinked from the heap,
// which is what makes "the shard thread already dequeued this timer" and
// "the owner cancelled it a moment later" resolve safely in either order.
type TimerData struct {
	ev *EventData
}

// timerNode is one entry in the shard's timer heap.
type timerNode struct {
	deadline time.Time
	data     TimerData
	index    int // maintained by container/heap
	armed    bool
}

// timerHeap implements heap.Interface over a slice of *timerNode, ordered
// by deadline. Structurally this is the same shape as the timerHeap type
// in the event loop this reactor is descended from, and the same choice
// (container/heap over a slice, guarded by a plain mutex) applies here:
// under the shard's realistic contention -- at most one inserting
// goroutine at a time per fd, one draining goroutine per shard -- a mutex
// outperforms a lock-free skip list and is far simpler to get right,
// particularly around the back-pointer nulling required to defang the
// completion/timeout race.
type timerHeap []*timerNode

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	n := x.(*timerNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[:n-1]
	return node
}

// TimerHandle is returned by TimerList.Add and lets the owner of an
// EventData cancel the timer should the I/O complete first.
type TimerHandle struct {
	list *TimerList
	node *timerNode
}

// Remove cancels the timer, if it has not already fired and been drained.
// It is safe to call Remove concurrently with DrainExpired for the same
// handle: exactly one of them wins the removal, the other is a no-op.
// Removal nulls the EventData back pointer before unlinking the heap
// entry, so a caller racing DrainExpired can never observe a half-removed
// node with a live back pointer.
func (h *TimerHandle) Remove() {
	if h == nil || h.node == nil {
		return
	}
	h.list.mu.Lock()
	defer h.list.mu.Unlock()
	if h.node.index < 0 || !h.node.armed {
		return
	}
	h.node.armed = false
	h.node.data.ev = nil
	heap.Remove(&h.list.heap, h.node.index)
}

// TimerList is a shard-local, cross-thread-safe min-heap of pending
// timeouts. Any goroutine may Add a timer (this happens when a coroutine
// issues a bounded I/O request from an arbitrary caller goroutine); only
// the shard's own poller loop ever calls DrainExpired, which keeps the
// draining side lock-held for the shortest possible window.
type TimerList struct {
	mu   sync.Mutex
	heap timerHeap
}

// NewTimerList returns an empty TimerList.
func NewTimerList() *TimerList {
	return &TimerList{}
}

// Add inserts a new timer expiring at deadline, returning a handle that
// can later cancel it plus whether this timer is now the earliest pending
// deadline in the list (the caller uses this to decide whether the
// shard's poller needs waking so it recomputes its wait timeout).
func (l *TimerList) Add(deadline time.Time, data TimerData) (*TimerHandle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := &timerNode{deadline: deadline, data: data, armed: true}
	heap.Push(&l.heap, n)
	isEarliest := n.index == 0
	return &TimerHandle{list: l, node: n}, isEarliest
}

// NextDeadline returns the earliest pending deadline and true, or the
// zero time and false if no timers are pending.
func (l *TimerList) NextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.heap) == 0 {
		return time.Time{}, false
	}
	return l.heap[0].deadline, true
}

// DrainExpired pops every timer whose deadline is at or before now and
// invokes onExpire with its TimerData. It must only be called from the
// shard's own poller goroutine. Each popped node has its back pointer
// observed and cleared under the same lock acquisition that removes it
// from the heap, so onExpire is always called with a consistent snapshot
// even though the EventData it points at may concurrently be completed
// and recycled by the OS-completion path -- the coSlot.take race is what
// actually arbitrates delivery, not this lock.
func (l *TimerList) DrainExpired(now time.Time, onExpire func(TimerData)) {
	for {
		l.mu.Lock()
		if len(l.heap) == 0 || l.heap[0].deadline.After(now) {
			l.mu.Unlock()
			return
		}
		n := heap.Pop(&l.heap).(*timerNode)
		n.armed = false
		data := n.data
		n.data.ev = nil
		l.mu.Unlock()
		onExpire(data)
	}
}

// Len reports the number of timers currently pending. Intended for tests
// and diagnostics only.
func (l *TimerList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.heap)
}
