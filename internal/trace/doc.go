// Package trace records what the compiler is doing.
//
// A Tracer receives begin/end pairs for the driver and each phase, points
// for every global and instance, and node events carrying the source span
// of a single instruction. The level picks the coarsest scope that is kept:
//
//	sus --trace=- --trace-level=phase top.sus
//	sus --trace=build.ndjson --trace-level=debug --trace-mode=both top.sus
//
// Events are streamed to a writer, kept in a ring for later dumps, or both.
//
// Separately from any tracer, passes record the spans they work on with
// Touch. Guard prints that history when an internal invariant panics, so a
// crash report always names the instruction being processed.
package trace
