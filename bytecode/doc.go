// Package bytecode reads and writes units: the binary container for typed
// stack-machine functions that the async transform rewrites.
//
// # Layout
//
// A unit starts with a little-endian magic and version, followed by
// LEB128 length-prefixed sections in increasing ID order:
//
//	1 strings    string pool
//	2 classes    name, superclass
//	3 symbols    call targets (owner, name, signature)
//	4 records    captured-state layouts
//	5 functions  bodies, handler tables, frame tables
//	0 custom     preserved verbatim, any position
//
// Branch targets and handler ranges are instruction indices, never byte
// offsets, so a decoded body can be rewritten without offset fix-ups.
//
// # Usage
//
//	u, err := bytecode.ParseUnit(data)
//	instrs, err := u.DecodeFunction(0)
//	out := u.Encode()
//
// ParseUnit validates every body: out-of-range branch targets, locals,
// symbols and handler ranges are decode errors.
package bytecode
