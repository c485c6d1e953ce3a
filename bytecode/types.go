package bytecode

import "strings"

// Unit is a parsed unit: the string pool plus class, symbol, record and
// function tables. A unit is the granularity of one input file.
type Unit struct {
	Strings        []string
	Classes        []Class
	Symbols        []Symbol
	Records        []RecordLayout
	Functions      []Function
	CustomSections []CustomSection
}

// Class declares a user class. Super is empty for classes extending Object.
type Class struct {
	Name  string
	Super string
}

// Symbol is a call target. Owner is empty for functions of the same unit.
type Symbol struct {
	Owner  string
	Name   string
	Params []Type
	Result Type
}

// RecordLayout is the captured-state layout for one suspension point.
type RecordLayout struct {
	Function string
	Point    uint32
	Fields   []Type
}

// Handler is one exception table entry. Start, End and Target are
// instruction indices; the range is [Start, End). Class "" catches
// everything. Region ties together entries that belong to the same
// source-level protected region.
type Handler struct {
	Class  string
	Start  uint32
	End    uint32
	Target uint32
	Region uint32
	Kind   byte
}

// Frame records the verified types at the start of an instruction.
type Frame struct {
	Locals []Type
	Stack  []Type
	Instr  uint32
}

// Function is one function body.
type Function struct {
	Name      string
	Params    []Type
	Result    Type
	Code      []byte
	Handlers  []Handler
	Frames    []Frame
	MaxStack  uint32
	MaxLocals uint32
	Flags     byte
}

// CustomSection is an opaque named section carried through unchanged.
type CustomSection struct {
	Name string
	Data []byte
}

// IsTransformed reports whether the function already went through the
// state machine rewrite.
func (f *Function) IsTransformed() bool {
	return f.Flags&FlagTransformed != 0
}

// IsContinuation reports whether the function is a synthetic resumption
// function.
func (f *Function) IsContinuation() bool {
	return f.Flags&FlagContinuation != 0
}

// Kind classifies a Type.
type Kind byte

const (
	KindVoid Kind = iota
	KindInt
	KindNull // untyped null, resolved at its first typed use
	KindTop  // unusable: conflicting or uninitialised
	KindRef
)

// Type is a value kind. Class is set only for KindRef.
type Type struct {
	Class string
	Kind  Kind
}

var (
	Void = Type{Kind: KindVoid}
	Int  = Type{Kind: KindInt}
	Null = Type{Kind: KindNull}
	Top  = Type{Kind: KindTop}
)

// Ref returns the reference type for class.
func Ref(class string) Type {
	return Type{Kind: KindRef, Class: class}
}

// IsReference reports whether t can hold a reference (a class or untyped null).
func (t Type) IsReference() bool {
	return t.Kind == KindRef || t.Kind == KindNull
}

func (t Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return "I"
	case KindNull:
		return "null"
	case KindTop:
		return "top"
	default:
		return t.Class
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) Type {
	switch s {
	case "void":
		return Void
	case "I":
		return Int
	case "null":
		return Null
	case "top":
		return Top
	default:
		return Ref(s)
	}
}

// Key returns the lookup key "Owner.Name", or just Name for local functions.
func (s Symbol) Key() string {
	if s.Owner == "" {
		return s.Name
	}
	return s.Owner + "." + s.Name
}

// String returns the full descriptor, e.g. "Future.join(Future)Object".
func (s Symbol) String() string {
	var b strings.Builder
	b.WriteString(s.Key())
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	b.WriteString(s.Result.String())
	return b.String()
}

// FindFunction returns the index of the named function or -1.
func (u *Unit) FindFunction(name string) int {
	for i := range u.Functions {
		if u.Functions[i].Name == name {
			return i
		}
	}
	return -1
}

// AddString interns s in the string pool and returns its index.
func (u *Unit) AddString(s string) uint32 {
	for i, existing := range u.Strings {
		if existing == s {
			return uint32(i)
		}
	}
	u.Strings = append(u.Strings, s)
	return uint32(len(u.Strings) - 1)
}

// AddSymbol interns sym in the symbol table and returns its index.
func (u *Unit) AddSymbol(sym Symbol) uint32 {
	desc := sym.String()
	for i := range u.Symbols {
		if u.Symbols[i].String() == desc {
			return uint32(i)
		}
	}
	u.Symbols = append(u.Symbols, sym)
	return uint32(len(u.Symbols) - 1)
}

// AddRecord appends a record layout and returns its index.
func (u *Unit) AddRecord(l RecordLayout) uint32 {
	u.Records = append(u.Records, l)
	return uint32(len(u.Records) - 1)
}

// ClassResolver resolves a class to its superclass. The second result is
// false for unknown classes and for the root class.
type ClassResolver interface {
	Superclass(name string) (string, bool)
}

var builtinSupers = map[string]string{
	ClassString:  ClassObject,
	ClassError:   ClassObject,
	ClassFuture:  ClassObject,
	ClassState:   ClassObject,
	ClassMachine: ClassObject,
}

// Hierarchy resolves classes declared by a unit, then an optional
// parent resolver, then the built-in classes.
type Hierarchy struct {
	parent ClassResolver
	supers map[string]string
}

// NewHierarchy builds a Hierarchy for u. parent may be nil.
func NewHierarchy(u *Unit, parent ClassResolver) *Hierarchy {
	h := &Hierarchy{parent: parent, supers: make(map[string]string)}
	if u != nil {
		for _, c := range u.Classes {
			super := c.Super
			if super == "" {
				super = ClassObject
			}
			h.supers[c.Name] = super
		}
	}
	return h
}

// Superclass implements ClassResolver.
func (h *Hierarchy) Superclass(name string) (string, bool) {
	if s, ok := h.supers[name]; ok {
		return s, true
	}
	if h.parent != nil {
		if s, ok := h.parent.Superclass(name); ok {
			return s, true
		}
	}
	s, ok := builtinSupers[name]
	return s, ok
}

// IsSubclass reports whether sub is super or one of its descendants.
// Every class is a subclass of Object.
func (h *Hierarchy) IsSubclass(sub, super string) bool {
	if super == ClassObject {
		return true
	}
	seen := 0
	for c := sub; ; {
		if c == super {
			return true
		}
		next, ok := h.Superclass(c)
		if !ok || seen > 256 {
			return false
		}
		c = next
		seen++
	}
}

// CommonAncestor returns the nearest class both a and b descend from.
func (h *Hierarchy) CommonAncestor(a, b string) string {
	if a == b {
		return a
	}
	chain := make(map[string]bool)
	for c, n := a, 0; n <= 256; n++ {
		chain[c] = true
		next, ok := h.Superclass(c)
		if !ok {
			break
		}
		c = next
	}
	for c, n := b, 0; n <= 256; n++ {
		if chain[c] {
			return c
		}
		next, ok := h.Superclass(c)
		if !ok {
			break
		}
		c = next
	}
	return ClassObject
}
