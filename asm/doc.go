// Package asm assembles the text form of a unit.
//
// The syntax is S-expression based; bodies are flat instruction lists
// with labels:
//
//	(unit
//	  (class IOError Error)
//	  (import $await async/Await await (param Future) (result Object))
//	  (func $first (param Future) (result Future)
//	    (catch $try $end $fail IOError)
//	    (label $try)
//	    load 0
//	    invoke $await
//	    (label $end)
//	    ...
//	    (label $fail)
//	    ...))
//
// Imports with owner "." and functions referenced by their $id call into
// the same unit. Locals and the stack bound are computed when not given
// with (locals N) and (stack N). bytecode.Disassemble produces text
// this package accepts.
package asm
