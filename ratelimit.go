package reactor

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// defaultInvariantRates caps internal-invariant-violation logging at a
// level that stays useful under a pathological workload (many thousands
// of racing completions/timeouts in a tight loop) without flooding
// whatever sink the configured Logger writes to.
var defaultInvariantRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 50,
}

// invariantLimiter throttles InvariantError logging per shard, using
// catrate's sliding-window multi-category limiter with the shard index as
// the category key. One limiter is shared by every SingleSelector created
// through the same Selector.
type invariantLimiter struct {
	limiter *catrate.Limiter
}

func newInvariantLimiter(rates map[time.Duration]int) *invariantLimiter {
	if rates == nil {
		rates = defaultInvariantRates
	}
	return &invariantLimiter{limiter: catrate.NewLimiter(rates)}
}

// reportInvariant logs err to l at error severity, subject to the shard's
// category budget. Suppressed reports are silently dropped: they are, by
// definition, not the first occurrence the operator needed to see.
func (r *invariantLimiter) reportInvariant(l Logger, shard int, err *InvariantError) {
	if r == nil || l == nil {
		return
	}
	if _, ok := r.limiter.Allow(shard); !ok {
		return
	}
	if !l.IsEnabled(LevelError) {
		return
	}
	l.Log(LogEntry{
		Level:    LevelError,
		Category: "invariant",
		ShardID:  shard,
		Message:  err.Message,
		Err:      err.Cause,
	})
}
