package vm

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

const defaultMaxDepth = 512

// Option configures a VM.
type Option func(*VM)

// WithNative registers or replaces the native for a symbol key such as
// "Resource.close".
func WithNative(key string, fn Native) Option {
	return func(vm *VM) {
		vm.natives[key] = fn
	}
}

// WithLogger sets the logger used for fallback warnings and resumption
// tracing. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(vm *VM) {
		vm.logger = l
	}
}

// WithClassResolver adds a resolver consulted for classes the unit does
// not declare.
func WithClassResolver(r bytecode.ClassResolver) Option {
	return func(vm *VM) {
		vm.resolver = r
	}
}

// WithMaxDepth bounds the call depth.
func WithMaxDepth(n int) Option {
	return func(vm *VM) {
		vm.maxDepth = n
	}
}

type compiled struct {
	fn     *bytecode.Function
	instrs []bytecode.Instruction
}

// target is a resolved symbol: a unit function or a native.
type target struct {
	native Native
	fn     int
}

// VM interprets the functions of one unit. A VM is safe for concurrent
// calls; every invocation owns its locals and operand stack.
type VM struct {
	resolver bytecode.ClassResolver
	unit     *bytecode.Unit
	classes  *bytecode.Hierarchy
	logger   *zap.Logger
	index    map[string]int
	natives  map[string]Native
	funcs    []compiled
	targets  []target
	maxDepth int
}

// Env is passed to natives.
type Env struct {
	Ctx      context.Context
	vm       *VM
	Function string
	Instr    int
	depth    int
}

// VM returns the machine executing the native.
func (e *Env) VM() *VM {
	return e.vm
}

// Load parses unit bytes and creates a VM for them.
func Load(data []byte, opts ...Option) (*VM, error) {
	u, err := bytecode.ParseUnit(data)
	if err != nil {
		return nil, errors.Load("parse unit", err)
	}
	return New(u, opts...)
}

// New creates a VM for u. Bodies are decoded once; symbols are resolved
// up front and unresolved ones fail when called.
func New(u *bytecode.Unit, opts ...Option) (*VM, error) {
	vm := &VM{
		unit:     u,
		index:    make(map[string]int, len(u.Functions)),
		natives:  make(map[string]Native, len(builtins)),
		maxDepth: defaultMaxDepth,
	}
	for k, fn := range builtins {
		vm.natives[k] = fn
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.logger == nil {
		vm.logger = Logger()
	}
	vm.classes = bytecode.NewHierarchy(u, vm.resolver)

	vm.funcs = make([]compiled, len(u.Functions))
	for i := range u.Functions {
		instrs, err := u.DecodeFunction(i)
		if err != nil {
			return nil, errors.Load("function "+u.Functions[i].Name, err)
		}
		vm.funcs[i] = compiled{fn: &u.Functions[i], instrs: instrs}
		vm.index[u.Functions[i].Name] = i
	}

	vm.targets = make([]target, len(u.Symbols))
	for i, sym := range u.Symbols {
		t := target{fn: -1}
		if sym.Owner == "" {
			if fi, ok := vm.index[sym.Name]; ok {
				t.fn = fi
			}
		} else {
			t.native = vm.natives[sym.Key()]
		}
		vm.targets[i] = t
	}
	return vm, nil
}

// Unit returns the unit the VM executes.
func (vm *VM) Unit() *bytecode.Unit {
	return vm.unit
}

// Classes returns the class hierarchy used for casts and handler matching.
func (vm *VM) Classes() *bytecode.Hierarchy {
	return vm.classes
}

// Call invokes the named function. Go int arguments are accepted for I
// parameters. An uncaught throw is returned as an *Exception.
func (vm *VM) Call(ctx context.Context, name string, args ...Value) (Value, error) {
	fi, ok := vm.index[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", name)
	}
	c := &vm.funcs[fi]
	if len(args) != len(c.fn.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Function(name).
			Detail("expected %d arguments, got %d", len(c.fn.Params), len(args)).
			Build()
	}
	in := make([]Value, len(args))
	for i, a := range args {
		if n, ok := a.(int); ok {
			a = int64(n)
		}
		in[i] = a
	}
	return vm.exec(ctx, c, in, 0)
}

// throwable reports the exception a callee error raises in the caller, or
// nil if the error must abort the whole call.
func throwable(err error) *Exception {
	var exc *Exception
	if stderrors.As(err, &exc) {
		return exc
	}
	var fault *errors.Error
	if stderrors.As(err, &fault) {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return asException(err)
}

func (vm *VM) findHandler(c *compiled, pc int, exc *Exception) int {
	for i, h := range c.fn.Handlers {
		if uint32(pc) < h.Start || uint32(pc) >= h.End {
			continue
		}
		if h.Class == "" || vm.classes.IsSubclass(exc.Class, h.Class) {
			return i
		}
	}
	return -1
}

func (vm *VM) invoke(ctx context.Context, c *compiled, pc int, symIdx uint32, args []Value, depth int) (Value, error) {
	t := vm.targets[symIdx]
	if t.fn >= 0 {
		return vm.exec(ctx, &vm.funcs[t.fn], args, depth+1)
	}
	if t.native == nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Function(c.fn.Name).
			Instr(pc).
			Detail("unresolved symbol %s", vm.unit.Symbols[symIdx]).
			Build()
	}
	env := &Env{Ctx: ctx, vm: vm, Function: c.fn.Name, Instr: pc, depth: depth}
	return t.native(env, args)
}
