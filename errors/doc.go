// Package errors provides structured error types for the async transform and
// its runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the function and instruction index it
// belongs to, an optional path, the offending type and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAnalyze, errors.KindTypeMismatch).
//		Function("doIt").
//		Instr(12).
//		Type("I").
//		Detail("expected String").
//		Build()
//
// Or use convenience constructors for the transform's error taxonomy:
//
//	err := errors.Decode(name, cause)           // malformed input, per file
//	err := errors.IllegalUsage(name, idx, msg)  // await outside a future-returning function
//	err := errors.Verify(name, cause)           // emitted code rejected, always a bug
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
