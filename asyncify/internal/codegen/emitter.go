package codegen

import (
	"fmt"

	"github.com/electronicarts/ea-async/bytecode"
)

// Label names a position in the stream. It is bound once with Bind.
type Label int

type handlerRef struct {
	class  string
	start  Label
	end    Label
	target Label
	region uint32
	kind   byte
}

// Emitter builds an instruction stream.
//
// Methods return the emitter so sequences chain:
//
//	e.Load(0).Dup().Invoke(isDone).Branch(bytecode.OpIfZero, slow)
type Emitter struct {
	instrs   []bytecode.Instruction
	refs     map[int][]Label
	labels   []int
	handlers []handlerRef
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{refs: make(map[int][]Label)}
}

// Len returns the number of instructions emitted so far.
func (e *Emitter) Len() int {
	return len(e.instrs)
}

// NewLabel allocates an unbound label.
func (e *Emitter) NewLabel() Label {
	e.labels = append(e.labels, -1)
	return Label(len(e.labels) - 1)
}

// Bind binds l to the next instruction emitted. Several labels may bind
// to the same position.
func (e *Emitter) Bind(l Label) *Emitter {
	e.labels[l] = len(e.instrs)
	return e
}

// Bound reports whether l has been bound.
func (e *Emitter) Bound(l Label) bool {
	return e.labels[l] >= 0
}

// Emit appends an instruction without branch targets.
func (e *Emitter) Emit(ins bytecode.Instruction) *Emitter {
	e.instrs = append(e.instrs, ins)
	return e
}

func (e *Emitter) op(opcode byte, imm interface{}) *Emitter {
	return e.Emit(bytecode.Instruction{Opcode: opcode, Imm: imm})
}

func (e *Emitter) Nop() *Emitter                 { return e.op(bytecode.OpNop, nil) }
func (e *Emitter) IConst(v int64) *Emitter       { return e.op(bytecode.OpIConst, bytecode.ConstImm{Value: v}) }
func (e *Emitter) SConst(str uint32) *Emitter    { return e.op(bytecode.OpSConst, bytecode.StringImm{Index: str}) }
func (e *Emitter) Null() *Emitter                { return e.op(bytecode.OpNull, nil) }
func (e *Emitter) Load(local uint32) *Emitter    { return e.op(bytecode.OpLoad, bytecode.LocalImm{Local: local}) }
func (e *Emitter) Store(local uint32) *Emitter   { return e.op(bytecode.OpStore, bytecode.LocalImm{Local: local}) }
func (e *Emitter) Pop() *Emitter                 { return e.op(bytecode.OpPop, nil) }
func (e *Emitter) Dup() *Emitter                 { return e.op(bytecode.OpDup, nil) }
func (e *Emitter) Swap() *Emitter                { return e.op(bytecode.OpSwap, nil) }
func (e *Emitter) Invoke(sym uint32) *Emitter    { return e.op(bytecode.OpInvoke, bytecode.InvokeImm{Symbol: sym}) }
func (e *Emitter) CheckCast(cls uint32) *Emitter { return e.op(bytecode.OpCheckCast, bytecode.ClassImm{Class: cls}) }
func (e *Emitter) Throw() *Emitter               { return e.op(bytecode.OpThrow, nil) }
func (e *Emitter) Return() *Emitter              { return e.op(bytecode.OpReturn, nil) }
func (e *Emitter) RetVal() *Emitter              { return e.op(bytecode.OpRetVal, nil) }
func (e *Emitter) NewRec(layout uint32) *Emitter {
	return e.op(bytecode.OpNewRec, bytecode.RecordImm{Layout: layout})
}
func (e *Emitter) RecGet(layout, field uint32) *Emitter {
	return e.op(bytecode.OpRecGet, bytecode.FieldImm{Layout: layout, Field: field})
}

// Branch emits a goto or conditional branch to l.
func (e *Emitter) Branch(opcode byte, l Label) *Emitter {
	e.refs[len(e.instrs)] = []Label{l}
	return e.op(opcode, bytecode.BranchImm{})
}

// Goto emits an unconditional branch to l.
func (e *Emitter) Goto(l Label) *Emitter {
	return e.Branch(bytecode.OpGoto, l)
}

// Switch emits a jump table: targets[i] for value low+i, def otherwise.
func (e *Emitter) Switch(low int32, targets []Label, def Label) *Emitter {
	e.refs[len(e.instrs)] = append(append([]Label(nil), targets...), def)
	return e.op(bytecode.OpSwitch, bytecode.SwitchImm{Low: low})
}

// Handler adds a handler table entry for [start, end) jumping to target.
// Entries keep the order they were added in; an empty range is dropped.
func (e *Emitter) Handler(start, end, target Label, class string, region uint32, kind byte) *Emitter {
	e.handlers = append(e.handlers, handlerRef{
		start:  start,
		end:    end,
		target: target,
		class:  class,
		region: region,
		kind:   kind,
	})
	return e
}

func (e *Emitter) resolve(l Label) (uint32, error) {
	if int(l) >= len(e.labels) || e.labels[l] < 0 {
		return 0, fmt.Errorf("label %d is not bound", l)
	}
	return uint32(e.labels[l]), nil
}

// Finish resolves labels and returns the instruction stream and handler
// table.
func (e *Emitter) Finish() ([]bytecode.Instruction, []bytecode.Handler, error) {
	out := make([]bytecode.Instruction, len(e.instrs))
	copy(out, e.instrs)

	for pc, labels := range e.refs {
		targets := make([]uint32, len(labels))
		for i, l := range labels {
			t, err := e.resolve(l)
			if err != nil {
				return nil, nil, fmt.Errorf("instruction %d: %w", pc, err)
			}
			targets[i] = t
		}
		if sw, ok := out[pc].Imm.(bytecode.SwitchImm); ok {
			sw.Targets = targets[:len(targets)-1]
			sw.Default = targets[len(targets)-1]
			out[pc].Imm = sw
		} else {
			out[pc].Imm = bytecode.BranchImm{Target: targets[0]}
		}
	}

	var handlers []bytecode.Handler
	for i, h := range e.handlers {
		start, err := e.resolve(h.start)
		if err != nil {
			return nil, nil, fmt.Errorf("handler %d start: %w", i, err)
		}
		end, err := e.resolve(h.end)
		if err != nil {
			return nil, nil, fmt.Errorf("handler %d end: %w", i, err)
		}
		target, err := e.resolve(h.target)
		if err != nil {
			return nil, nil, fmt.Errorf("handler %d target: %w", i, err)
		}
		if start >= end {
			continue
		}
		handlers = append(handlers, bytecode.Handler{
			Start:  start,
			End:    end,
			Target: target,
			Class:  h.class,
			Region: h.region,
			Kind:   h.kind,
		})
	}
	return out, handlers, nil
}
