package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Contains(t, ShardState(99).String(), "unknown")
}

func TestShardState_ZeroValueIsOpen(t *testing.T) {
	var s shardState
	assert.Equal(t, StateOpen, s.Load())
	assert.False(t, s.Closing())
	assert.False(t, s.Closed())
}

func TestShardState_TryTransition(t *testing.T) {
	var s shardState
	require.True(t, s.TryTransition(StateOpen, StateClosing))
	assert.True(t, s.Closing())
	assert.False(t, s.Closed())

	// A stale transition attempt (wrong "from") must fail and leave state
	// untouched.
	require.False(t, s.TryTransition(StateOpen, StateClosed))
	assert.Equal(t, StateClosing, s.Load())

	require.True(t, s.TryTransition(StateClosing, StateClosed))
	assert.True(t, s.Closed())
	assert.True(t, s.Closing())
}

func TestShardState_Store(t *testing.T) {
	var s shardState
	s.Store(StateClosed)
	assert.Equal(t, StateClosed, s.Load())
}
