package reactor

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestInvariantLimiter_Throttles exercises the requirement that
// internal-invariant logging must never flood output: under a tight
// budget, only the first few reports within the window should reach the
// logger.
func TestInvariantLimiter_Throttles(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelError, &buf)

	lim := newInvariantLimiter(map[time.Duration]int{time.Minute: 3})
	for i := 0; i < 20; i++ {
		lim.reportInvariant(logger, 0, &InvariantError{Shard: 0, Message: "race"})
	}

	count := bytes.Count(buf.Bytes(), []byte("race"))
	assert.LessOrEqual(t, count, 3, "at most the configured budget of reports should reach the logger")
	assert.Greater(t, count, 0, "at least one report should get through")
}

func TestInvariantLimiter_NilIsNoOp(t *testing.T) {
	var lim *invariantLimiter
	assert.NotPanics(t, func() {
		lim.reportInvariant(NewNoOpLogger(), 0, &InvariantError{Message: "x"})
	})
	lim = newInvariantLimiter(nil)
	assert.NotPanics(t, func() {
		lim.reportInvariant(nil, 0, &InvariantError{Message: "x"})
	})
}

func TestInvariantLimiter_PerShardIndependence(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelError, &buf)

	lim := newInvariantLimiter(map[time.Duration]int{time.Minute: 1})
	lim.reportInvariant(logger, 0, &InvariantError{Shard: 0, Message: "shard0"})
	lim.reportInvariant(logger, 1, &InvariantError{Shard: 1, Message: "shard1"})

	out := buf.String()
	assert.Contains(t, out, "shard0")
	assert.Contains(t, out, "shard1")
}
