package codegen

import (
	"fmt"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// FrameFunc analyzes a decoded function and returns the entry frame of
// every reachable block in instruction order.
type FrameFunc func(fn *bytecode.Function, instrs []bytecode.Instruction) ([]bytecode.Frame, error)

// Build finishes e into a function carrying proto's name, signature and
// flags. The stack bound, local count, handler table and frame table are
// all derived from the emitted stream; proto.MaxLocals is a lower bound.
func Build(u *bytecode.Unit, e *Emitter, proto bytecode.Function, frames FrameFunc) (*bytecode.Function, error) {
	instrs, handlers, err := e.Finish()
	if err != nil {
		return nil, errors.Internal(errors.PhaseTransform, proto.Name, err.Error())
	}

	fn := proto
	fn.Code = bytecode.EncodeInstructions(instrs)
	fn.Handlers = handlers
	fn.MaxLocals = MaxLocals(instrs, len(proto.Params), proto.MaxLocals)
	fn.Frames = nil

	bound, err := u.MaxStack(instrs, handlers)
	if err != nil {
		return nil, errors.Verify(proto.Name, err)
	}
	fn.MaxStack = bound

	if frames != nil {
		fs, err := frames(&fn, instrs)
		if err != nil {
			return nil, errors.Verify(proto.Name, err)
		}
		fn.Frames = fs
	}
	return &fn, nil
}

// MaxLocals returns the number of locals instrs need: at least params and
// floor, and one past the highest local loaded or stored.
func MaxLocals(instrs []bytecode.Instruction, params int, floor uint32) uint32 {
	n := floor
	if uint32(params) > n {
		n = uint32(params)
	}
	for _, ins := range instrs {
		if imm, ok := ins.Imm.(bytecode.LocalImm); ok && imm.Local+1 > n {
			n = imm.Local + 1
		}
	}
	return n
}

// Verify re-decodes function index of u, re-runs the analysis and checks
// the result against the function's declared bounds and frame table.
// Every failure is an internal error.
func Verify(u *bytecode.Unit, index int, frames FrameFunc) error {
	fn := &u.Functions[index]
	instrs, err := u.DecodeFunction(index)
	if err != nil {
		return errors.Verify(fn.Name, err)
	}

	bound, err := u.MaxStack(instrs, fn.Handlers)
	if err != nil {
		return errors.Verify(fn.Name, err)
	}
	if bound > fn.MaxStack {
		return errors.Verify(fn.Name, fmt.Errorf("stack bound %d exceeds declared %d", bound, fn.MaxStack))
	}
	if need := MaxLocals(instrs, len(fn.Params), 0); need > fn.MaxLocals {
		return errors.Verify(fn.Name, fmt.Errorf("needs %d locals, declares %d", need, fn.MaxLocals))
	}

	got, err := frames(fn, instrs)
	if err != nil {
		return errors.Verify(fn.Name, err)
	}
	if err := compareFrames(fn.Frames, got); err != nil {
		return errors.Verify(fn.Name, err)
	}
	return nil
}

func compareFrames(declared, computed []bytecode.Frame) error {
	if len(declared) != len(computed) {
		return fmt.Errorf("frame table has %d entries, analysis found %d blocks", len(declared), len(computed))
	}
	for i := range declared {
		d, c := declared[i], computed[i]
		if d.Instr != c.Instr {
			return fmt.Errorf("frame %d: declared at %d, expected at %d", i, d.Instr, c.Instr)
		}
		if !sameTypes(d.Locals, c.Locals) {
			return fmt.Errorf("frame at %d: locals %v, expected %v", d.Instr, d.Locals, c.Locals)
		}
		if !sameTypes(d.Stack, c.Stack) {
			return fmt.Errorf("frame at %d: stack %v, expected %v", d.Instr, d.Stack, c.Stack)
		}
	}
	return nil
}

func sameTypes(a, b []bytecode.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
