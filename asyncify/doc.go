// Package asyncify rewrites functions of a unit that await futures into
// resumable state machines.
//
// # Overview
//
// Source code written against a suspend intrinsic reads sequentially:
//
//	(func $load (param Future) (result Future)
//	  load 0
//	  invoke $await        ;; async/Await.await(Future) Object
//	  checkcast String
//	  invoke $completed
//	  retval)
//
// Left alone, the runtime can only block on the awaited future. After
// Transform the function never blocks: it runs straight through while
// every awaited future is already done, and otherwise captures its live
// state in a record, registers a resumption with the runtime and returns
// a pending future the caller can compose.
//
// # How It Works
//
// Every call to a suspend intrinsic becomes a suspension point with a
// resumption index starting at 1. The rewritten function checks the
// awaited future at each point:
//
//	dup
//	invoke Future.isDone
//	ifzero suspend_p        ;; not done: save state and return
//	invoke Future.join      ;; done: take the value, continue inline
//
// The suspend path stores the live locals and operand stack values into a
// record laid out for that point and calls async/Machine.suspend. The
// companion continuation, named after the function with the "$async"
// suffix, takes (Machine, I, State, Future), switches on the resumption
// index, restores the record and continues right after the original call.
// Exception handlers covering a suspension point keep covering the
// resumed code, so a failed future is routed the same way in both.
//
// # Usage
//
//	out, err := asyncify.Transform(nil, unitBytes, func(msg string) {
//	    fmt.Fprintln(os.Stderr, msg)
//	})
//	if errors.Is(err, asyncify.ErrUnchanged) {
//	    out = unitBytes
//	}
//
// Custom intrinsics:
//
//	matcher := asyncify.NewWildcardMatcher([]string{"async/Await.await", "my/Tasks.*"})
//	out, err := asyncify.Transform(loader, unitBytes, sink, asyncify.WithMatcher(matcher))
//
// # Restrictions
//
// A function calling a suspend intrinsic must return Future or a subclass
// of it. Other functions are reported to the sink and keep blocking at
// run time. Values whose type is unusable at a suspension point (locals
// assigned different kinds on different paths) are never read again and
// are not captured.
package asyncify
