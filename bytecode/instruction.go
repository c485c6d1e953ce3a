package bytecode

import (
	"fmt"

	"github.com/electronicarts/ea-async/bytecode/internal/binary"
)

// Instruction represents a decoded instruction.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// ConstImm holds the value for iconst.
type ConstImm struct {
	Value int64
}

// StringImm holds the string pool index for sconst.
type StringImm struct {
	Index uint32
}

// LocalImm holds the local index for load and store.
type LocalImm struct {
	Local uint32
}

// BranchImm holds the target instruction index of a branch.
type BranchImm struct {
	Target uint32
}

// SwitchImm holds the jump table for switch. Targets[i] is taken for
// value Low+i, Default for everything else.
type SwitchImm struct {
	Targets []uint32
	Default uint32
	Low     int32
}

// InvokeImm holds the symbol index for invoke.
type InvokeImm struct {
	Symbol uint32
}

// ClassImm holds the string pool index of a class name for checkcast and
// instanceof.
type ClassImm struct {
	Class uint32
}

// RecordImm holds the layout index for newrec.
type RecordImm struct {
	Layout uint32
}

// FieldImm holds the layout and field index for recget.
type FieldImm struct {
	Layout uint32
	Field  uint32
}

// IsBranch reports whether the instruction transfers control to an
// explicit target.
func (i Instruction) IsBranch() bool {
	switch i.Opcode {
	case OpGoto, OpIfZero, OpIfNonZero, OpIfLt, OpIfNull, OpIfNonNull, OpSwitch:
		return true
	}
	return false
}

// FallsThrough reports whether execution may continue with the next
// instruction.
func (i Instruction) FallsThrough() bool {
	switch i.Opcode {
	case OpGoto, OpSwitch, OpThrow, OpReturn, OpRetVal:
		return false
	}
	return true
}

// EndsBlock reports whether the instruction terminates a basic block.
func (i Instruction) EndsBlock() bool {
	return i.IsBranch() || !i.FallsThrough()
}

// Targets returns the explicit branch targets, default last for switch.
func (i Instruction) Targets() []uint32 {
	switch imm := i.Imm.(type) {
	case BranchImm:
		return []uint32{imm.Target}
	case SwitchImm:
		out := make([]uint32, 0, len(imm.Targets)+1)
		out = append(out, imm.Targets...)
		return append(out, imm.Default)
	}
	return nil
}

// Retarget returns a copy of the instruction with every branch target
// rewritten through fn.
func (i Instruction) Retarget(fn func(uint32) uint32) Instruction {
	switch imm := i.Imm.(type) {
	case BranchImm:
		i.Imm = BranchImm{Target: fn(imm.Target)}
	case SwitchImm:
		targets := make([]uint32, len(imm.Targets))
		for k, t := range imm.Targets {
			targets[k] = fn(t)
		}
		i.Imm = SwitchImm{Low: imm.Low, Targets: targets, Default: fn(imm.Default)}
	}
	return i
}

func (i Instruction) String() string {
	name := OpcodeName(i.Opcode)
	if name == "" {
		name = fmt.Sprintf("op(0x%02x)", i.Opcode)
	}
	switch imm := i.Imm.(type) {
	case nil:
		return name
	case ConstImm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case StringImm:
		return fmt.Sprintf("%s #%d", name, imm.Index)
	case LocalImm:
		return fmt.Sprintf("%s %d", name, imm.Local)
	case BranchImm:
		return fmt.Sprintf("%s @%d", name, imm.Target)
	case SwitchImm:
		return fmt.Sprintf("%s %d %v @%d", name, imm.Low, imm.Targets, imm.Default)
	case InvokeImm:
		return fmt.Sprintf("%s sym#%d", name, imm.Symbol)
	case ClassImm:
		return fmt.Sprintf("%s #%d", name, imm.Class)
	case RecordImm:
		return fmt.Sprintf("%s rec#%d", name, imm.Layout)
	case FieldImm:
		return fmt.Sprintf("%s rec#%d.%d", name, imm.Layout, imm.Field)
	}
	return name
}

// DecodeInstructions decodes a function's code bytes.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Len() > 0 {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		instr := Instruction{Opcode: op}

		switch op {
		case OpNop, OpNull, OpPop, OpDup, OpSwap, OpAdd, OpSub, OpMul, OpCmp,
			OpThrow, OpReturn, OpRetVal:
			// no immediates

		case OpIConst:
			v, err := r.ReadS64()
			if err != nil {
				return nil, err
			}
			instr.Imm = ConstImm{Value: v}

		case OpSConst:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = StringImm{Index: idx}

		case OpLoad, OpStore:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = LocalImm{Local: idx}

		case OpGoto, OpIfZero, OpIfNonZero, OpIfLt, OpIfNull, OpIfNonNull:
			target, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = BranchImm{Target: target}

		case OpSwitch:
			low, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			count, err := r.ReadLen()
			if err != nil {
				return nil, err
			}
			targets := make([]uint32, count)
			for k := range targets {
				if targets[k], err = r.ReadU32(); err != nil {
					return nil, err
				}
			}
			def, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = SwitchImm{Low: low, Targets: targets, Default: def}

		case OpInvoke:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = InvokeImm{Symbol: idx}

		case OpCheckCast, OpInstanceOf:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = ClassImm{Class: idx}

		case OpNewRec:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = RecordImm{Layout: idx}

		case OpRecGet:
			layout, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			field, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = FieldImm{Layout: layout, Field: field}

		default:
			return nil, fmt.Errorf("unknown opcode 0x%02x at offset %d", op, r.Position()-1)
		}

		instrs = append(instrs, instr)
	}

	return instrs, nil
}

// EncodeInstructions encodes instructions back to code bytes.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstructionTo(w, &instrs[i])
	}
	return w.Bytes()
}

func encodeInstructionTo(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)
	switch imm := instr.Imm.(type) {
	case ConstImm:
		w.WriteS64(imm.Value)
	case StringImm:
		w.WriteU32(imm.Index)
	case LocalImm:
		w.WriteU32(imm.Local)
	case BranchImm:
		w.WriteU32(imm.Target)
	case SwitchImm:
		w.WriteS32(imm.Low)
		w.WriteLen(len(imm.Targets))
		for _, t := range imm.Targets {
			w.WriteU32(t)
		}
		w.WriteU32(imm.Default)
	case InvokeImm:
		w.WriteU32(imm.Symbol)
	case ClassImm:
		w.WriteU32(imm.Class)
	case RecordImm:
		w.WriteU32(imm.Layout)
	case FieldImm:
		w.WriteU32(imm.Layout)
		w.WriteU32(imm.Field)
	}
}
