// Package codegen emits the instruction streams of transformed functions.
//
// The Emitter is a fluent builder over bytecode.Instruction with symbolic
// labels; branch targets and handler ranges are resolved when the stream
// is finished. Build turns a finished stream into a bytecode.Function,
// recomputing its stack and local bounds and regenerating its frame table.
// Verify re-checks an encoded function against a fresh analysis.
//
// # Responsibilities
//
//   - Emit the state machine dispatcher and restore stubs
//   - Emit the fast and suspend paths around each suspend call
//   - Keep handler ranges and region ids attached to moved code
//
// This package is internal to the async transformer.
package codegen
