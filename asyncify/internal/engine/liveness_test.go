package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electronicarts/ea-async/asyncify/internal/ir"
	"github.com/electronicarts/ea-async/bytecode"
)

func TestLiveness_Transfer(t *testing.T) {
	la := NewLivenessAnalyzer(&bytecode.Unit{}, 2)
	s0, s1 := la.StackPos(0), la.StackPos(1)

	tests := []struct {
		name   string
		ins    bytecode.Instruction
		height int
		after  []uint32
		before []uint32
	}{
		{"load reads local", bytecode.Instruction{Opcode: bytecode.OpLoad, Imm: bytecode.LocalImm{Local: 1}}, 0, []uint32{s0}, []uint32{1}},
		{"store kills local", bytecode.Instruction{Opcode: bytecode.OpStore, Imm: bytecode.LocalImm{Local: 0}}, 1, []uint32{0}, []uint32{s0}},
		{"pop reads nothing", bytecode.Instruction{Opcode: bytecode.OpPop}, 2, []uint32{s0}, []uint32{s0}},
		{"add reads both", bytecode.Instruction{Opcode: bytecode.OpAdd}, 2, []uint32{s0}, []uint32{s0, s1}},
		{"dead result", bytecode.Instruction{Opcode: bytecode.OpAdd}, 2, nil, []uint32{s0, s1}},
		{"dup", bytecode.Instruction{Opcode: bytecode.OpDup}, 1, []uint32{s1}, []uint32{s0}},
		{"const", bytecode.Instruction{Opcode: bytecode.OpIConst, Imm: bytecode.ConstImm{}}, 1, []uint32{s0, s1}, []uint32{s0}},
		{"passthrough", bytecode.Instruction{Opcode: bytecode.OpNop}, 1, []uint32{0, s0}, []uint32{0, s0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := NewBitSet(8)
			for _, v := range tt.after {
				live.Set(v)
			}
			la.transfer(tt.ins, tt.height, live)
			require.Equal(t, tt.before, live.ToSlice())
		})
	}
}

func TestLiveness_LoopCarriesLocals(t *testing.T) {
	u := parseUnit(t, loopFunc)
	idx := u.FindFunction("loop")
	fn := &u.Functions[idx]
	instrs, err := u.DecodeFunction(idx)
	require.NoError(t, err)

	sites := []int{3, 6}
	g, err := ir.Build(fn.Name, instrs, fn.Handlers, sites...)
	require.NoError(t, err)
	an, err := NewAnalyzer(u, bytecode.NewHierarchy(u, nil), nil).Analyze(fn, instrs, g)
	require.NoError(t, err)

	la := NewLivenessAnalyzer(u, int(fn.MaxLocals))
	live := la.ComputeForCallSites(an, instrs, sites)
	require.Len(t, live, 2)
	for _, s := range sites {
		// Both locals are read again on the way back to the loop head;
		// the await result itself is popped.
		require.Equal(t, []uint32{0, 1}, live[s].ToSlice(), "site %d", s)
	}
}
