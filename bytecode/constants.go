package bytecode

// Unit binary format magic number and version.
const (
	// Magic is the unit magic number ("CYSA" in little-endian).
	Magic uint32 = 0x41535943

	// Version is the supported unit format version.
	Version uint32 = 0x01
)

// Section IDs. Sections must appear in increasing order by ID
// (except custom sections, which may appear anywhere).
const (
	SectionCustom    byte = 0 // Custom section, preserved verbatim
	SectionStrings   byte = 1 // String pool
	SectionClasses   byte = 2 // Class table (name, superclass)
	SectionSymbols   byte = 3 // Call targets
	SectionRecords   byte = 4 // Captured-state record layouts
	SectionFunctions byte = 5 // Function bodies
)

// Function flags.
const (
	FlagTransformed  byte = 1 << 0 // body was rewritten into a state machine
	FlagContinuation byte = 1 << 1 // synthetic resumption function
)

// Handler kinds.
const (
	HandlerCatch   byte = 0 // ordinary protected region
	HandlerCleanup byte = 1 // resource/finally region, always catch-any
)

// Type tags in the binary encoding.
const (
	tagVoid byte = 0
	tagInt  byte = 1
	tagNull byte = 2
	tagTop  byte = 3
	tagRef  byte = 4
)

// Opcodes.
const (
	OpNop    byte = 0x00
	OpIConst byte = 0x01 // s64
	OpSConst byte = 0x02 // string index
	OpNull   byte = 0x03

	OpLoad  byte = 0x10 // local
	OpStore byte = 0x11 // local

	OpPop  byte = 0x18
	OpDup  byte = 0x19
	OpSwap byte = 0x1a

	OpAdd byte = 0x20
	OpSub byte = 0x21
	OpMul byte = 0x22
	OpCmp byte = 0x23

	OpGoto      byte = 0x30 // target
	OpIfZero    byte = 0x31 // target
	OpIfNonZero byte = 0x32 // target
	OpIfLt      byte = 0x33 // target
	OpIfNull    byte = 0x34 // target
	OpIfNonNull byte = 0x35 // target
	OpSwitch    byte = 0x36 // low, targets, default

	OpInvoke     byte = 0x40 // symbol
	OpCheckCast  byte = 0x42 // class string
	OpInstanceOf byte = 0x43 // class string

	OpThrow  byte = 0x48
	OpReturn byte = 0x50
	OpRetVal byte = 0x51

	OpNewRec byte = 0x60 // layout
	OpRecGet byte = 0x61 // layout, field
)

// Built-in class names. Every unit implicitly declares these.
const (
	ClassObject  = "Object"
	ClassString  = "String"
	ClassError   = "Error"
	ClassFuture  = "Future"
	ClassState   = "async/State"
	ClassMachine = "async/Machine"
)

// Runtime symbols the transform emits calls to.
const (
	OwnerFuture  = "Future"
	OwnerMachine = "async/Machine"
	OwnerAwait   = "async/Await"

	ContinuationSuffix = "$async"
)

var opcodeNames = map[byte]string{
	OpNop:        "nop",
	OpIConst:     "iconst",
	OpSConst:     "sconst",
	OpNull:       "null",
	OpLoad:       "load",
	OpStore:      "store",
	OpPop:        "pop",
	OpDup:        "dup",
	OpSwap:       "swap",
	OpAdd:        "add",
	OpSub:        "sub",
	OpMul:        "mul",
	OpCmp:        "cmp",
	OpGoto:       "goto",
	OpIfZero:     "ifzero",
	OpIfNonZero:  "ifnonzero",
	OpIfLt:       "iflt",
	OpIfNull:     "ifnull",
	OpIfNonNull:  "ifnonnull",
	OpSwitch:     "switch",
	OpInvoke:     "invoke",
	OpCheckCast:  "checkcast",
	OpInstanceOf: "instanceof",
	OpThrow:      "throw",
	OpReturn:     "return",
	OpRetVal:     "retval",
	OpNewRec:     "newrec",
	OpRecGet:     "recget",
}

var opcodesByName = func() map[string]byte {
	m := make(map[string]byte, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// OpcodeName returns the mnemonic for op, or "" if op is not defined.
func OpcodeName(op byte) string {
	return opcodeNames[op]
}

// LookupOpcode returns the opcode for a mnemonic.
func LookupOpcode(name string) (byte, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// Opcodes returns every defined opcode.
func Opcodes() []byte {
	ops := make([]byte, 0, len(opcodeNames))
	for op := 0; op < 256; op++ {
		if _, ok := opcodeNames[byte(op)]; ok {
			ops = append(ops, byte(op))
		}
	}
	return ops
}
