// Package vm interprets bytecode units.
//
// The interpreter is small on purpose: it exists to run units before and
// after the async transform and compare what they do. It has an operand
// stack per activation, exception handlers with class matching, and a
// fixed set of natives for futures, strings and errors.
//
// # Futures and Machines
//
// A *Future is single-assignment. Transformed code tests it with
// Future.isDone and takes the value with Future.join, which only blocks
// when the future is still pending. When a transformed function must
// wait, it calls async/Machine.suspend, which creates a *Machine on first
// use and registers the continuation on the awaited future:
//
//	v, _ := vm.Load(data)
//	res, err := v.Call(ctx, "fetch", pending)
//	// res is the machine's pending result future
//	pending.Complete("payload")
//	out, err := res.(*vm.Future).Join(ctx)
//
// An untransformed call to async/Await.await still works: it logs
// FallbackWarning on every call and blocks.
//
// # Errors
//
// A throw that no handler catches is returned from Call as an *Exception.
// Runtime faults such as stack underflow or unresolved symbols are
// returned as *errors.Error with PhaseRuntime and are never catchable.
package vm
