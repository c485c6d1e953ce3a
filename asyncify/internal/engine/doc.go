// Package engine orchestrates the async transformation of a unit.
//
// Transformation pipeline, per function:
//  1. Locate suspend calls and check the function returns a Future
//  2. Build the control-flow graph, split after each suspend call
//  3. Analyze frames to a fixpoint (types of every local and stack slot)
//  4. Compute the live locals and stack slots at each suspend call
//  5. Build the state machine: segments, record layouts, dispatcher
//  6. Emit the rewritten function and its continuation, then verify
package engine
