package vm

import (
	"context"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// frame is the operand stack of one activation. Faults are recorded
// rather than returned so the dispatch loop checks once per instruction.
type frame struct {
	fault *errors.Error
	stack []Value
	fn    string
	pc    int
}

func (f *frame) fail(kind errors.Kind, format string, args ...any) {
	if f.fault == nil {
		f.fault = errors.New(errors.PhaseRuntime, kind).
			Function(f.fn).
			Instr(f.pc).
			Detail(format, args...).
			Build()
	}
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() Value {
	if len(f.stack) == 0 {
		f.fail(errors.KindStackUnderflow, "operand stack underflow")
		return nil
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) popN(n int) []Value {
	if len(f.stack) < n {
		f.fail(errors.KindStackUnderflow, "operand stack underflow")
		return make([]Value, n)
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (f *frame) popInt() int64 {
	v := f.pop()
	n, ok := v.(int64)
	if !ok && f.fault == nil {
		f.fail(errors.KindTypeMismatch, "expected I, got %s", Format(v))
	}
	return n
}

func (vm *VM) exec(ctx context.Context, c *compiled, args []Value, depth int) (Value, error) {
	if depth > vm.maxDepth {
		return nil, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Function(c.fn.Name).
			Detail("call depth %d exceeded", vm.maxDepth).
			Build()
	}

	locals := make([]Value, c.fn.MaxLocals)
	copy(locals, args)
	f := &frame{fn: c.fn.Name, stack: make([]Value, 0, c.fn.MaxStack+1)}
	u := vm.unit

	for {
		if f.pc < 0 || f.pc >= len(c.instrs) {
			f.fail(errors.KindOutOfBounds, "execution left the function body")
			return nil, f.fault
		}
		ins := c.instrs[f.pc]
		next := f.pc + 1
		var thrown *Exception

		switch ins.Opcode {
		case bytecode.OpNop:

		case bytecode.OpIConst:
			f.push(ins.Imm.(bytecode.ConstImm).Value)

		case bytecode.OpSConst:
			f.push(u.Strings[ins.Imm.(bytecode.StringImm).Index])

		case bytecode.OpNull:
			f.push(nil)

		case bytecode.OpLoad:
			f.push(locals[ins.Imm.(bytecode.LocalImm).Local])

		case bytecode.OpStore:
			locals[ins.Imm.(bytecode.LocalImm).Local] = f.pop()

		case bytecode.OpPop:
			f.pop()

		case bytecode.OpDup:
			v := f.pop()
			f.push(v)
			f.push(v)

		case bytecode.OpSwap:
			b := f.pop()
			a := f.pop()
			f.push(b)
			f.push(a)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpCmp:
			b := f.popInt()
			a := f.popInt()
			switch ins.Opcode {
			case bytecode.OpAdd:
				f.push(a + b)
			case bytecode.OpSub:
				f.push(a - b)
			case bytecode.OpMul:
				f.push(a * b)
			default:
				switch {
				case a < b:
					f.push(int64(-1))
				case a > b:
					f.push(int64(1))
				default:
					f.push(int64(0))
				}
			}

		case bytecode.OpGoto:
			next = int(ins.Imm.(bytecode.BranchImm).Target)

		case bytecode.OpIfZero, bytecode.OpIfNonZero:
			v := f.popInt()
			if (v == 0) == (ins.Opcode == bytecode.OpIfZero) {
				next = int(ins.Imm.(bytecode.BranchImm).Target)
			}

		case bytecode.OpIfLt:
			b := f.popInt()
			a := f.popInt()
			if a < b {
				next = int(ins.Imm.(bytecode.BranchImm).Target)
			}

		case bytecode.OpIfNull, bytecode.OpIfNonNull:
			v := f.pop()
			if (v == nil) == (ins.Opcode == bytecode.OpIfNull) {
				next = int(ins.Imm.(bytecode.BranchImm).Target)
			}

		case bytecode.OpSwitch:
			imm := ins.Imm.(bytecode.SwitchImm)
			k := f.popInt() - int64(imm.Low)
			if k >= 0 && k < int64(len(imm.Targets)) {
				next = int(imm.Targets[k])
			} else {
				next = int(imm.Default)
			}

		case bytecode.OpInvoke:
			symIdx := ins.Imm.(bytecode.InvokeImm).Symbol
			sym := u.Symbols[symIdx]
			callArgs := f.popN(len(sym.Params))
			if f.fault != nil {
				break
			}
			v, err := vm.invoke(ctx, c, f.pc, symIdx, callArgs, depth)
			if err != nil {
				if thrown = throwable(err); thrown == nil {
					return nil, err
				}
				break
			}
			if sym.Result.Kind != bytecode.KindVoid {
				if n, ok := v.(int); ok {
					v = int64(n)
				}
				f.push(v)
			}

		case bytecode.OpCheckCast:
			class := u.Strings[ins.Imm.(bytecode.ClassImm).Class]
			v := f.pop()
			if v != nil && !vm.classes.IsSubclass(ClassOf(v), class) {
				thrown = NewException(bytecode.ClassError, "cannot cast "+ClassOf(v)+" to "+class)
				break
			}
			f.push(v)

		case bytecode.OpInstanceOf:
			class := u.Strings[ins.Imm.(bytecode.ClassImm).Class]
			v := f.pop()
			f.push(boolValue(v != nil && vm.classes.IsSubclass(ClassOf(v), class)))

		case bytecode.OpThrow:
			v := f.pop()
			exc, ok := v.(*Exception)
			if !ok {
				exc = NewException(bytecode.ClassError, "throw of non-error value "+Format(v))
			}
			thrown = exc

		case bytecode.OpReturn:
			return nil, nil

		case bytecode.OpRetVal:
			v := f.pop()
			if f.fault != nil {
				return nil, f.fault
			}
			return v, nil

		case bytecode.OpNewRec:
			layout := ins.Imm.(bytecode.RecordImm).Layout
			fields := f.popN(len(u.Records[layout].Fields))
			f.push(&Record{Layout: layout, Fields: fields})

		case bytecode.OpRecGet:
			imm := ins.Imm.(bytecode.FieldImm)
			rec, ok := f.pop().(*Record)
			if !ok || rec.Layout != imm.Layout {
				f.fail(errors.KindTypeMismatch, "recget on a record of another layout")
				break
			}
			f.push(rec.Fields[imm.Field])

		default:
			f.fail(errors.KindUnsupported, "opcode 0x%02x", ins.Opcode)
		}

		if f.fault != nil {
			return nil, f.fault
		}

		if thrown != nil {
			h := vm.findHandler(c, f.pc, thrown)
			if h < 0 {
				return nil, thrown
			}
			f.stack = append(f.stack[:0], thrown)
			next = int(c.fn.Handlers[h].Target)
		}
		f.pc = next
	}
}
