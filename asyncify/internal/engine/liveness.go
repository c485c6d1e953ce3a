package engine

import (
	"github.com/electronicarts/ea-async/bytecode"
)

// LivenessAnalyzer computes which locals and operand stack positions are
// live. Positions share one universe: locals 0..n-1, then stack slot k
// as n+k.
type LivenessAnalyzer struct {
	unit      *bytecode.Unit
	numLocals int
}

// NewLivenessAnalyzer creates an analyzer over a function with numLocals
// locals.
func NewLivenessAnalyzer(u *bytecode.Unit, numLocals int) *LivenessAnalyzer {
	return &LivenessAnalyzer{unit: u, numLocals: numLocals}
}

// StackPos returns the universe position of stack slot k.
func (la *LivenessAnalyzer) StackPos(k int) uint32 {
	return uint32(la.numLocals + k)
}

// IsLocal reports whether pos names a local.
func (la *LivenessAnalyzer) IsLocal(pos uint32) bool {
	return int(pos) < la.numLocals
}

// ComputeForCallSites returns the live-out set of each site. Every site
// must end its block.
func (la *LivenessAnalyzer) ComputeForCallSites(an *Analysis, instrs []bytecode.Instruction, sites []int) map[int]*BitSet {
	g := an.Graph
	size := la.numLocals
	for _, f := range an.BlockIn {
		if f != nil && la.numLocals+len(f.Stack)+8 > size {
			size = la.numLocals + len(f.Stack) + 8
		}
	}

	in := make([]*BitSet, len(g.Blocks))
	for b := range in {
		in[b] = NewBitSet(size)
	}

	changed := true
	for changed {
		changed = false
		for b := len(g.Blocks) - 1; b >= 0; b-- {
			if an.BlockIn[b] == nil {
				continue
			}
			live := la.blockOut(an, b, in)
			exc := la.exceptional(an, b, in)
			blk := &g.Blocks[b]
			for i := blk.End - 1; i >= blk.Start; i-- {
				live.Union(exc)
				la.transfer(instrs[i], len(an.Frames[i].Stack), live)
			}
			if in[b].Union(live) {
				changed = true
			}
		}
	}

	out := make(map[int]*BitSet, len(sites))
	for _, s := range sites {
		if !an.Reachable(s) {
			continue
		}
		b := g.BlockOf(s)
		live := la.blockOut(an, b, in)
		live.Union(la.exceptional(an, b, in))
		out[s] = live
	}
	return out
}

func (la *LivenessAnalyzer) blockOut(an *Analysis, b int, in []*BitSet) *BitSet {
	out := NewBitSet(0)
	for _, s := range an.Graph.Blocks[b].Succs {
		out.Union(in[s])
	}
	return out
}

// exceptional is the set of locals a handler covering b may read. Stack
// positions do not survive a throw.
func (la *LivenessAnalyzer) exceptional(an *Analysis, b int, in []*BitSet) *BitSet {
	exc := NewBitSet(0)
	for _, h := range an.Graph.Blocks[b].ExcSuccs {
		exc.Union(in[h])
	}
	exc.ClearFrom(uint32(la.numLocals))
	return exc
}

// transfer turns the live set after ins into the live set before it.
// height is the stack height before ins.
func (la *LivenessAnalyzer) transfer(ins bytecode.Instruction, height int, live *BitSet) {
	pops, _ := la.unit.StackEffect(ins)
	base := height - pops
	live.ClearFrom(la.StackPos(base))

	switch ins.Opcode {
	case bytecode.OpPop:
	case bytecode.OpLoad:
		live.Set(ins.Imm.(bytecode.LocalImm).Local)
	case bytecode.OpStore:
		live.Clear(ins.Imm.(bytecode.LocalImm).Local)
		live.Set(la.StackPos(base))
	default:
		for k := base; k < height; k++ {
			live.Set(la.StackPos(k))
		}
	}
}
