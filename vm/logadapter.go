package vm

import (
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-actorvm/reactor"
)

// LogifeAdapter adapts a github.com/joeycumines/logiface logger onto
// reactor.Logger, the sink the rest of this runtime (reactor, fiber, vm)
// logs diagnostics through — referenced from reactor/logging.go's doc
// comment as the intended production wiring.
type LogifeAdapter struct {
	logger *logiface.Logger[logiface.Event]
}

// NewLogifeAdapter wraps logger. A nil logger is accepted and behaves like
// reactor.NewNoopLogger.
func NewLogifeAdapter(logger *logiface.Logger[logiface.Event]) *LogifeAdapter {
	return &LogifeAdapter{logger: logger}
}

// IsEnabled reports whether level would actually produce output, mirroring
// reactor.Logger's contract.
func (a *LogifeAdapter) IsEnabled(level reactor.Level) bool {
	if a == nil || a.logger == nil {
		return false
	}
	return mapLevel(level) <= a.logger.Level()
}

// Log emits entry through the wrapped logiface logger, mapping reactor's
// four-level scheme onto logiface's syslog-derived one and carrying the
// category, loop id, error, and fields across as structured fields.
func (a *LogifeAdapter) Log(entry reactor.Entry) {
	if a == nil || a.logger == nil {
		return
	}
	b := a.logger.Build(mapLevel(entry.Level))
	if !b.Enabled() {
		b.Release()
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.LoopID != 0 {
		b = b.Any("loop_id", entry.LoopID)
	}
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

func mapLevel(level reactor.Level) logiface.Level {
	switch level {
	case reactor.LevelDebug:
		return logiface.LevelDebug
	case reactor.LevelInfo:
		return logiface.LevelInformational
	case reactor.LevelWarn:
		return logiface.LevelWarning
	case reactor.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
