package trace

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapTracer forwards events to a zap.Logger. Span ends carry the elapsed
// time between begin and end when both were observed.
type ZapTracer struct {
	logger *zap.Logger
	level  Level
}

// NewZapTracer creates a tracer writing through logger.
func NewZapTracer(logger *zap.Logger, level Level) *ZapTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapTracer{logger: logger.Named("trace"), level: level}
}

// Emit logs the event. Failed events go out at warn level, the rest at debug.
func (t *ZapTracer) Emit(ev *Event) {
	if ev == nil || !t.level.Accepts(ev) {
		return
	}
	if ev.Seq == 0 {
		ev.Seq = NextSeq()
	}
	lvl := zapcore.DebugLevel
	if ev.Failed {
		lvl = zapcore.WarnLevel
	}
	ce := t.logger.Check(lvl, ev.Name)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 6+len(ev.Extra))
	fields = append(fields,
		zap.Uint64("seq", ev.Seq),
		zap.Stringer("kind", ev.Kind),
		zap.Stringer("scope", ev.Scope),
	)
	if ev.SpanID != 0 {
		fields = append(fields, zap.Uint64("span", ev.SpanID))
	}
	if ev.ParentID != 0 {
		fields = append(fields, zap.Uint64("parent", ev.ParentID))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	for k, v := range ev.Extra {
		fields = append(fields, zap.String(k, v))
	}
	ce.Write(fields...)
}

// Flush syncs the underlying logger.
func (t *ZapTracer) Flush() error {
	// stderr/stdout sync fails with EINVAL on some platforms
	_ = t.logger.Sync() //nolint:errcheck
	return nil
}

// Close flushes the logger. The logger itself is owned by the caller.
func (t *ZapTracer) Close() error {
	return t.Flush()
}

// Level returns the current tracing level.
func (t *ZapTracer) Level() Level {
	return t.level
}

// Enabled returns true if tracing is active.
func (t *ZapTracer) Enabled() bool {
	return t.level > LevelOff
}
