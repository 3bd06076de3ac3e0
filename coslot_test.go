package reactor

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCoroutine struct{ id int }

func (stubCoroutine) Resume() (EventSource, bool) { return nil, false }

func TestCoSlot_PublishTake(t *testing.T) {
	var s coSlot
	assert.False(t, s.peek())

	co := stubCoroutine{id: 1}
	s.publish(co)
	assert.True(t, s.peek())

	got, ok := s.take()
	require.True(t, ok)
	assert.Equal(t, co, got)
	assert.False(t, s.peek())
}

func TestCoSlot_TakeEmpty(t *testing.T) {
	var s coSlot
	got, ok := s.take()
	assert.False(t, ok)
	assert.Nil(t, got)
}

// TestCoSlot_SingleDelivery exercises the single-delivery guarantee at
// the coSlot level directly: of N concurrent take() calls racing a single
// publish, exactly one succeeds.
func TestCoSlot_SingleDelivery(t *testing.T) {
	for iter := 0; iter < 200; iter++ {
		var s coSlot
		s.publish(stubCoroutine{id: iter})

		const n = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				if _, ok := s.take(); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load(), "exactly one take() must win per publish")
	}
}
