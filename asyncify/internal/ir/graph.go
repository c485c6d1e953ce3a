package ir

import (
	"fmt"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// Block is a maximal straight-line run of instructions [Start, End).
type Block struct {
	Succs    []int // normal successors, fallthrough first
	ExcSuccs []int // handler entry blocks, in handler table order
	ID       int
	Start    int
	End      int
}

// Last returns the index of the block's final instruction.
func (b *Block) Last() int {
	return b.End - 1
}

// HandlerEntry is one handler of the function with its range resolved to
// blocks.
type HandlerEntry struct {
	Class  string // "" catches every error
	Index  int    // position in the function's handler table
	Start  int    // first covered instruction
	End    int    // first instruction after the range
	First  int    // first covered block
	Last   int    // last covered block
	Entry  int    // block of the handler target
	Region uint32
	Kind   byte
}

// Covers reports whether the handler range contains instruction i.
func (h *HandlerEntry) Covers(i int) bool {
	return i >= h.Start && i < h.End
}

// Graph is the control-flow graph of one function.
type Graph struct {
	Blocks   []Block
	Handlers []HandlerEntry
	blockOf  []int
	Entry    int
}

// BlockOf returns the block containing instruction i.
func (g *Graph) BlockOf(i int) int {
	return g.blockOf[i]
}

// Covering returns the handlers whose range contains instruction i, in
// table order.
func (g *Graph) Covering(i int) []int {
	var out []int
	for k := range g.Handlers {
		if g.Handlers[k].Covers(i) {
			out = append(out, k)
		}
	}
	return out
}

// Build splits instrs into blocks. The instruction after every index in
// splits also starts a block, so a split instruction always ends its block.
func Build(function string, instrs []bytecode.Instruction, handlers []bytecode.Handler, splits ...int) (*Graph, error) {
	n := len(instrs)
	if n == 0 {
		return nil, errors.Decode(function, fmt.Errorf("empty body"))
	}

	leader := make([]bool, n+1)
	leader[0] = true
	mark := func(pc int, what string) error {
		if pc < 0 || pc > n {
			return errors.Decode(function, fmt.Errorf("%s %d out of range", what, pc))
		}
		leader[pc] = true
		return nil
	}

	for i, ins := range instrs {
		for _, t := range ins.Targets() {
			if int(t) >= n {
				return nil, errors.Decode(function, fmt.Errorf("instruction %d: branch target %d out of range", i, t))
			}
			leader[t] = true
		}
		if ins.IsBranch() || ins.EndsBlock() {
			leader[i+1] = true
		}
		if ins.FallsThrough() && i == n-1 {
			return nil, errors.Decode(function, fmt.Errorf("execution falls off the end"))
		}
	}
	for k, h := range handlers {
		if h.Start >= h.End || int(h.Target) >= n {
			return nil, errors.Decode(function, fmt.Errorf("handler %d: invalid range", k))
		}
		if err := mark(int(h.Start), "handler start"); err != nil {
			return nil, err
		}
		if err := mark(int(h.End), "handler end"); err != nil {
			return nil, err
		}
		if err := mark(int(h.Target), "handler target"); err != nil {
			return nil, err
		}
	}
	for _, s := range splits {
		if err := mark(s+1, "split"); err != nil {
			return nil, err
		}
	}

	g := &Graph{blockOf: make([]int, n)}
	for i := 0; i < n; i++ {
		if leader[i] {
			g.Blocks = append(g.Blocks, Block{ID: len(g.Blocks), Start: i})
		}
		g.blockOf[i] = len(g.Blocks) - 1
	}
	for b := range g.Blocks {
		if b+1 < len(g.Blocks) {
			g.Blocks[b].End = g.Blocks[b+1].Start
		} else {
			g.Blocks[b].End = n
		}
	}

	for k, h := range handlers {
		start, end := int(h.Start), int(h.End)
		g.Handlers = append(g.Handlers, HandlerEntry{
			Class:  h.Class,
			Index:  k,
			Start:  start,
			End:    end,
			First:  g.blockOf[start],
			Last:   g.blockOf[end-1],
			Entry:  g.blockOf[h.Target],
			Region: h.Region,
			Kind:   h.Kind,
		})
	}

	for b := range g.Blocks {
		blk := &g.Blocks[b]
		last := instrs[blk.Last()]
		if last.FallsThrough() {
			blk.Succs = appendUnique(blk.Succs, g.blockOf[blk.End])
		}
		for _, t := range last.Targets() {
			blk.Succs = appendUnique(blk.Succs, g.blockOf[t])
		}
		for _, h := range g.Handlers {
			if h.Covers(blk.Start) {
				blk.ExcSuccs = appendUnique(blk.ExcSuccs, h.Entry)
			}
		}
	}
	return g, nil
}

// Reachable walks the graph from roots over normal and exceptional edges.
// The normal successors of a block are skipped when cut reports true for
// it; its exceptional successors are still followed.
func (g *Graph) Reachable(roots []int, cut func(b int) bool) []bool {
	seen := make([]bool, len(g.Blocks))
	work := append([]int(nil), roots...)
	for _, r := range roots {
		seen[r] = true
	}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]

		blk := &g.Blocks[b]
		next := blk.ExcSuccs
		if cut == nil || !cut(b) {
			next = append(append([]int(nil), blk.Succs...), blk.ExcSuccs...)
		}
		for _, s := range next {
			if !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	return seen
}

// Members returns the indices set in a Reachable result, ascending.
func Members(set []bool) []int {
	var out []int
	for b, ok := range set {
		if ok {
			out = append(out, b)
		}
	}
	return out
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
