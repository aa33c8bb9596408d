// Package trace provides structured tracing for metadata resolution.
//
// Tracing records provider lifecycle, module loading, token resolution and
// instantiation-cache activity. It never alters control flow: emitting an
// event cannot fail and has no effect on the operation being traced.
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to an io.Writer (text or NDJSON)
//   - RingTracer: circular buffer, dumped on demand
//   - ZapTracer: forwards events to a zap.Logger
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: failures only
//   - LevelPhase: provider lifecycle and module load/unload
//   - LevelDetail: token resolution
//   - LevelDebug: everything, including cache transactions
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeModule, "warm:Game", 0)
//	defer span.End("")
package trace
