// Package eaasync rewrites functions that await futures into resumable
// state machines.
//
// Code is compiled to units: binary containers of typed stack bytecode
// with classes, call symbols and exception handler tables. A call to the
// async/Await.await intrinsic blocks the calling thread. The transform
// replaces each such function with one that completes synchronously
// while every awaited future is already done, and otherwise saves its
// live locals and operand stack in a record, registers a continuation,
// and returns a pending future to its caller.
//
// # Architecture Overview
//
//	eaasync/
//	├── bytecode/        Unit binary format, instruction set, disassembler
//	├── asm/             Text assembler producing units
//	├── asyncify/        The transform and its public options
//	├── vm/              Interpreter with futures and the resumption runtime
//	├── errors/          Structured error types for debugging
//	└── cmd/asyncify/    Batch CLI and interactive browser
//
// # Quick Start
//
//	data, err := asm.Compile(source)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := asyncify.Transform(nil, data, func(msg string) {
//	    log.Println(msg)
//	})
//	if err != nil && !errors.Is(err, asyncify.ErrUnchanged) {
//	    log.Fatal(err)
//	}
//
//	machine, err := vm.Load(out)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := machine.Call(ctx, "download", "example.com")
//
// # Thread Safety
//
// Transform is safe for concurrent use. A VM may run calls from several
// goroutines; continuations resume on the goroutine that completes the
// awaited future.
package eaasync
