package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvariantError_Error(t *testing.T) {
	e := &InvariantError{Shard: 3, Message: "boom"}
	assert.Contains(t, e.Error(), "shard 3")
	assert.Contains(t, e.Error(), "boom")

	cause := errors.New("underlying")
	e2 := &InvariantError{Shard: 1, Message: "boom", Cause: cause}
	assert.Contains(t, e2.Error(), "underlying")
	assert.ErrorIs(t, e2, cause)
}

func TestWrapError(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapError("context here", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "context here")
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrClosed, ErrShardOutOfRange, ErrTooManyShards,
		ErrAlreadyRegistered, ErrNotRegistered, ErrTimeout,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
