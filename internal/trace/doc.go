// Package trace records what the pipeline is doing: stage boundaries and,
// at higher levels, every target visit.
//
// # Usage
//
//	modmap build --trace=- --trace-level=target
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelStage: driver and stage spans (load, order, propagate, write)
//   - LevelTarget: one span per target plus point events for skips
//   - LevelDebug: everything, including per-batch spans
//
// # Context propagation
//
// The tracer and the current span travel in context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span, ctx := trace.Start(ctx, trace.ScopeStage, "propagate")
//	defer span.End("")
package trace
