package reactor

import "github.com/joeycumines/logiface"

// LogifaceLogger adapts a *logiface.Logger[E] to this package's Logger
// interface, so a caller can route the reactor's own diagnostics (timer
// scheduling, poll errors, invariant violations) through whatever backend
// logiface is configured with -- zerolog, logrus, stumpy, slog, or any
// other EventFactory implementation -- instead of the built-in
// DefaultLogger. Pass the result to SetStructuredLogger.
type LogifaceLogger[E logiface.Event] struct {
	logger *logiface.Logger[E]
}

// NewLogifaceLogger wraps logger for use as this package's global Logger.
func NewLogifaceLogger[E logiface.Event](logger *logiface.Logger[E]) *LogifaceLogger[E] {
	return &LogifaceLogger[E]{logger: logger}
}

// IsEnabled reports whether the wrapped logiface.Logger would emit at the
// given level, mirroring logiface's own canLog threshold check (level
// numerically at or below the configured threshold) without allocating a
// Builder just to answer the question.
func (l *LogifaceLogger[E]) IsEnabled(level LogLevel) bool {
	lv := logifaceLevel(level)
	return lv.Enabled() && lv <= l.logger.Level()
}

// Log translates a LogEntry into a single logiface builder chain and
// emits it.
func (l *LogifaceLogger[E]) Log(entry LogEntry) {
	b := l.logger.Build(logifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.ShardID != 0 {
		b = b.Int("shard", entry.ShardID)
	}
	if entry.FD != 0 {
		b = b.Int("fd", entry.FD)
	}
	if entry.TimerID != 0 {
		b = b.Int("timer", int(entry.TimerID))
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

// logifaceLevel maps this package's LogLevel onto logiface's syslog-style
// Level scale.
func logifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
