package handler

import (
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// Handler is the interface for the type transfer of one instruction.
//
// Handlers are stateless and can be shared across analyses. All mutable
// state is passed via Context. A handler should:
//   - Pop the operand types it consumes, checking them
//   - Push the types it produces
//   - Return an error for ill-typed code
type Handler interface {
	Handle(ctx *Context, instr bytecode.Instruction) error
}

// Func is an adapter to use ordinary functions as Handlers.
//
// Example:
//
//	r.Register(bytecode.OpNop, handler.Func(func(ctx *Context, instr bytecode.Instruction) error {
//	    return nil
//	}))
type Func func(ctx *Context, instr bytecode.Instruction) error

// Handle implements Handler.
func (f Func) Handle(ctx *Context, instr bytecode.Instruction) error {
	return f(ctx, instr)
}

// Registry maps opcodes to their handlers.
//
// The registry provides O(1) handler lookup by opcode. Missing handlers
// can be detected before analysis begins.
type Registry struct {
	handlers [256]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns a registry with handlers for every opcode of the
// instruction set.
func Default() *Registry {
	r := NewRegistry()
	RegisterConstantHandlers(r)
	RegisterVariableHandlers(r)
	RegisterStackHandlers(r)
	RegisterArithmeticHandlers(r)
	RegisterControlHandlers(r)
	RegisterReferenceHandlers(r)
	return r
}

// Register adds a handler for a single opcode, replacing any previous one.
func (r *Registry) Register(opcode byte, h Handler) {
	r.handlers[opcode] = h
}

// RegisterBulk registers the same handler for multiple opcodes.
func (r *Registry) RegisterBulk(opcodes []byte, h Handler) {
	for _, op := range opcodes {
		r.handlers[op] = h
	}
}

// Get returns the handler for an opcode, or nil if not registered.
func (r *Registry) Get(opcode byte) Handler {
	return r.handlers[opcode]
}

// MissingHandlers returns opcodes that have no registered handler.
func (r *Registry) MissingHandlers(opcodes []byte) []byte {
	var missing []byte
	for _, op := range opcodes {
		if r.handlers[op] == nil {
			missing = append(missing, op)
		}
	}
	return missing
}

// Frame is the abstract state before an instruction: one type per local
// and one per operand stack slot, bottom first.
type Frame struct {
	Locals []bytecode.Type
	Stack  []bytecode.Type
}

// Clone returns an independent copy.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Locals: append([]bytecode.Type(nil), f.Locals...),
		Stack:  append([]bytecode.Type(nil), f.Stack...),
	}
}

// Export converts the frame to the unit's frame table form.
func (f *Frame) Export(instr int) bytecode.Frame {
	c := f.Clone()
	return bytecode.Frame{Instr: uint32(instr), Locals: c.Locals, Stack: c.Stack}
}

// Resolution records the type a deferred null widened to at its first
// typed use: the stack slot consumed at Instr.
type Resolution struct {
	Type  bytecode.Type
	Instr int
	Slot  int
}

// Context provides shared state for handlers during analysis.
type Context struct {
	Unit     *bytecode.Unit
	Classes  *bytecode.Hierarchy
	Frame    *Frame
	Result   bytecode.Type
	Function string
	Resolved []Resolution
	Instr    int
}

func (c *Context) mismatch(want, got bytecode.Type) error {
	return errors.TypeMismatch(errors.PhaseAnalyze, c.Function, c.Instr, want.String(), got.String())
}

func (c *Context) fault(kind errors.Kind, format string, args ...any) error {
	return errors.New(errors.PhaseAnalyze, kind).
		Function(c.Function).
		Instr(c.Instr).
		Detail(format, args...).
		Build()
}

// Push pushes a type onto the operand stack.
func (c *Context) Push(t bytecode.Type) {
	c.Frame.Stack = append(c.Frame.Stack, t)
}

// Pop pops any type.
func (c *Context) Pop() (bytecode.Type, error) {
	s := c.Frame.Stack
	if len(s) == 0 {
		return bytecode.Top, c.fault(errors.KindStackUnderflow, "operand stack underflow")
	}
	t := s[len(s)-1]
	c.Frame.Stack = s[:len(s)-1]
	return t, nil
}

// PopInt pops an I.
func (c *Context) PopInt() error {
	t, err := c.Pop()
	if err != nil {
		return err
	}
	if t.Kind != bytecode.KindInt {
		return c.mismatch(bytecode.Int, t)
	}
	return nil
}

// PopRef pops a reference or null.
func (c *Context) PopRef() (bytecode.Type, error) {
	t, err := c.Pop()
	if err != nil {
		return t, err
	}
	if !t.IsReference() {
		return t, c.mismatch(bytecode.Ref(bytecode.ClassObject), t)
	}
	return t, nil
}

// PopAs pops a value that must be assignable to want. A deferred null
// consumed by a reference slot is resolved to want.
func (c *Context) PopAs(want bytecode.Type) error {
	slot := len(c.Frame.Stack) - 1
	t, err := c.Pop()
	if err != nil {
		return err
	}
	if !Assignable(c.Classes, t, want) {
		return c.mismatch(want, t)
	}
	if t.Kind == bytecode.KindNull && want.Kind == bytecode.KindRef {
		c.Resolved = append(c.Resolved, Resolution{Instr: c.Instr, Slot: slot, Type: want})
	}
	return nil
}

// Local returns the type of a local, rejecting unusable ones.
func (c *Context) Local(idx uint32) (bytecode.Type, error) {
	if int(idx) >= len(c.Frame.Locals) {
		return bytecode.Top, c.fault(errors.KindOutOfBounds, "local %d out of range", idx)
	}
	t := c.Frame.Locals[idx]
	if t.Kind == bytecode.KindTop || t.Kind == bytecode.KindVoid {
		return t, c.fault(errors.KindTypeMismatch, "read of unusable local %d", idx)
	}
	return t, nil
}

// SetLocal sets the type of a local.
func (c *Context) SetLocal(idx uint32, t bytecode.Type) error {
	if int(idx) >= len(c.Frame.Locals) {
		return c.fault(errors.KindOutOfBounds, "local %d out of range", idx)
	}
	c.Frame.Locals[idx] = t
	return nil
}

// Assignable reports whether a value of type from may be used where to is
// expected.
func Assignable(classes *bytecode.Hierarchy, from, to bytecode.Type) bool {
	switch to.Kind {
	case bytecode.KindInt:
		return from.Kind == bytecode.KindInt
	case bytecode.KindNull:
		return from.Kind == bytecode.KindNull
	case bytecode.KindRef:
		switch from.Kind {
		case bytecode.KindNull:
			return true
		case bytecode.KindRef:
			return classes.IsSubclass(from.Class, to.Class)
		}
	case bytecode.KindTop:
		return from.Kind != bytecode.KindVoid
	}
	return false
}
