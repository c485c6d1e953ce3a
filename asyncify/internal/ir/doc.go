// Package ir builds the control-flow graph of a decoded function.
//
// Blocks live in a flat arena (Graph.Blocks) and refer to each other by
// index, so the graph has no pointer cycles. A block starts at:
//   - instruction 0
//   - every branch and switch target
//   - the instruction after a branch, switch, return or throw
//   - every handler start, end and target
//   - the instruction after each requested split point
//
// Handler coverage is therefore uniform inside a block, and every handler
// range is a contiguous run of blocks.
package ir
