// Package handler provides the per-opcode type transfer functions used by
// the frame analyzer.
//
// Handler categories:
//   - Constants: iconst, sconst, null
//   - Variables: load, store
//   - Stack: nop, pop, dup, swap
//   - Arithmetic: add, sub, mul, cmp
//   - Control: goto, conditional branches, switch
//   - Reference: invoke, casts, throw, returns, records
package handler
