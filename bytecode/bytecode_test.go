package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sampleUnit builds: func add1(I) I { load 0; iconst 1; add; retval }
// plus a function with a handler and a branch.
func sampleUnit() *Unit {
	u := &Unit{
		Classes: []Class{{Name: "IOError", Super: ClassError}, {Name: "Task", Super: ClassFuture}},
	}
	join := u.AddSymbol(Symbol{Owner: OwnerFuture, Name: "join", Params: []Type{Ref(ClassFuture)}, Result: Ref(ClassObject)})
	hello := u.AddString("hello")

	u.Functions = append(u.Functions, Function{
		Name:      "add1",
		Params:    []Type{Int},
		Result:    Int,
		MaxLocals: 1,
		MaxStack:  2,
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpLoad, Imm: LocalImm{Local: 0}},
			{Opcode: OpIConst, Imm: ConstImm{Value: 1}},
			{Opcode: OpAdd},
			{Opcode: OpRetVal},
		}),
	})
	u.Functions = append(u.Functions, Function{
		Name:      "guarded",
		Params:    []Type{Ref(ClassFuture)},
		Result:    Ref(ClassObject),
		MaxLocals: 1,
		MaxStack:  1,
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpLoad, Imm: LocalImm{Local: 0}},
			{Opcode: OpInvoke, Imm: InvokeImm{Symbol: join}},
			{Opcode: OpRetVal},
			{Opcode: OpPop},
			{Opcode: OpSConst, Imm: StringImm{Index: hello}},
			{Opcode: OpRetVal},
		}),
		Handlers: []Handler{{Start: 0, End: 2, Target: 3, Class: "IOError", Region: 1}},
		Frames:   []Frame{{Instr: 3, Locals: []Type{Ref(ClassFuture)}, Stack: []Type{Ref("IOError")}}},
	})
	return u
}

func TestEncodeParseRoundTrip(t *testing.T) {
	u := sampleUnit()
	data := u.Encode()

	got, err := ParseUnit(data)
	require.NoError(t, err)
	require.Equal(t, u.Classes, got.Classes)
	require.Equal(t, u.Symbols, got.Symbols)
	require.Len(t, got.Functions, 2)
	require.Equal(t, u.Functions[1].Handlers, got.Functions[1].Handlers)
	require.Equal(t, u.Functions[1].Frames, got.Functions[1].Frames)
	require.Equal(t, u.Functions[0].Code, got.Functions[0].Code)

	// A decoded unit re-encodes byte for byte.
	require.True(t, bytes.Equal(data, got.Encode()))
}

func TestParseUnitErrors(t *testing.T) {
	valid := sampleUnit().Encode()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "bad magic", data: []byte{1, 2, 3, 4, 1, 0, 0, 0}, want: ErrInvalidMagic},
		{name: "bad version", data: append(append([]byte{}, valid[:4]...), 9, 0, 0, 0), want: ErrInvalidVersion},
		{name: "truncated", data: valid[:len(valid)-3]},
		{name: "empty", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUnit(tt.data)
			require.Error(t, err)
			if tt.want != nil {
				require.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestParseUnitRejectsOutOfRangeTarget(t *testing.T) {
	u := sampleUnit()
	u.Functions[0].Code = EncodeInstructions([]Instruction{
		{Opcode: OpGoto, Imm: BranchImm{Target: 7}},
	})
	_, err := ParseUnit(u.Encode())
	require.Error(t, err)
	require.Contains(t, err.Error(), "branch target 7 out of range")
}

func TestParseUnitRejectsBadHandler(t *testing.T) {
	u := sampleUnit()
	u.Functions[1].Handlers[0].End = 40
	_, err := ParseUnit(u.Encode())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid range")
}

func TestDecodeInstructionsRoundTrip(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpIConst, Imm: ConstImm{Value: -42}},
		{Opcode: OpSwitch, Imm: SwitchImm{Low: -1, Targets: []uint32{3, 4}, Default: 5}},
		{Opcode: OpRecGet, Imm: FieldImm{Layout: 2, Field: 1}},
		{Opcode: OpNewRec, Imm: RecordImm{Layout: 2}},
		{Opcode: OpCheckCast, Imm: ClassImm{Class: 9}},
		{Opcode: OpNull},
	}
	got, err := DecodeInstructions(EncodeInstructions(instrs))
	require.NoError(t, err)
	require.Equal(t, instrs, got)

	_, err = DecodeInstructions([]byte{0xee})
	require.Error(t, err)
}

func TestInstructionControlFlow(t *testing.T) {
	sw := Instruction{Opcode: OpSwitch, Imm: SwitchImm{Targets: []uint32{1, 2}, Default: 3}}
	require.Equal(t, []uint32{1, 2, 3}, sw.Targets())
	require.False(t, sw.FallsThrough())
	require.True(t, sw.EndsBlock())

	br := Instruction{Opcode: OpIfZero, Imm: BranchImm{Target: 4}}
	require.True(t, br.FallsThrough())
	require.Equal(t, []uint32{14}, br.Retarget(func(t uint32) uint32 { return t + 10 }).Targets())

	require.True(t, Instruction{Opcode: OpThrow}.EndsBlock())
	require.False(t, Instruction{Opcode: OpAdd}.EndsBlock())
}

func TestMaxStack(t *testing.T) {
	u := sampleUnit()
	instrs, err := u.DecodeFunction(1)
	require.NoError(t, err)
	bound, err := u.MaxStack(instrs, u.Functions[1].Handlers)
	require.NoError(t, err)
	require.Equal(t, uint32(1), bound)

	_, err = u.MaxStack([]Instruction{{Opcode: OpAdd}, {Opcode: OpReturn}}, nil)
	require.ErrorContains(t, err, "underflow")

	// Join with differing heights.
	_, err = u.MaxStack([]Instruction{
		{Opcode: OpIConst, Imm: ConstImm{Value: 0}},
		{Opcode: OpIfZero, Imm: BranchImm{Target: 3}},
		{Opcode: OpIConst, Imm: ConstImm{Value: 1}},
		{Opcode: OpReturn},
	}, nil)
	require.ErrorContains(t, err, "differs")
}

func TestHierarchy(t *testing.T) {
	h := NewHierarchy(sampleUnit(), nil)

	require.True(t, h.IsSubclass("Task", ClassFuture))
	require.True(t, h.IsSubclass("Task", ClassObject))
	require.False(t, h.IsSubclass(ClassFuture, "Task"))
	require.True(t, h.IsSubclass("Unknown", ClassObject))
	require.False(t, h.IsSubclass("Unknown", ClassError))

	require.Equal(t, ClassFuture, h.CommonAncestor("Task", ClassFuture))
	require.Equal(t, ClassObject, h.CommonAncestor("IOError", ClassString))
	require.Equal(t, ClassError, h.CommonAncestor("IOError", ClassError))
}

func TestSymbolString(t *testing.T) {
	s := Symbol{Owner: OwnerMachine, Name: "suspend", Params: []Type{Ref(ClassMachine), Int}, Result: Ref(ClassFuture)}
	require.Equal(t, "async/Machine.suspend(async/Machine,I)Future", s.String())
	require.Equal(t, "helper", Symbol{Name: "helper"}.Key())
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{Void, Int, Null, Top, Ref("Task")} {
		require.Equal(t, typ, ParseType(typ.String()))
	}
}

func TestDisassemble(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Disassemble(&buf, sampleUnit()))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "(unit"))
	require.Contains(t, out, "(class Task Future)")
	require.Contains(t, out, "(func $add1 (param I) (result I) (locals 1) (stack 2)")
	require.Contains(t, out, "(catch $L0 $L2 $L3 IOError (region 1))")
	require.Contains(t, out, `sconst "hello"`)
	require.Contains(t, out, "invoke $sym0 ;; Future.join(Future)Object")
}
