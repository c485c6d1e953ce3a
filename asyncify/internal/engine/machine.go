package engine

import (
	"github.com/electronicarts/ea-async/asyncify/internal/codegen"
	"github.com/electronicarts/ea-async/asyncify/internal/ir"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// SuspensionPoint is one reachable suspend call.
type SuspensionPoint struct {
	Await  bytecode.Symbol // the matched intrinsic
	Fields []bytecode.Type // record layout, one entry per captured value
	Live   []uint32        // captured positions, locals first
	Stack  []bytecode.Type // operand stack below the awaited future
	ID     int             // resumption index, starting at 1
	Instr  int
	Layout uint32
}

// StateMachine is the resumable form of one function.
type StateMachine struct {
	Analysis *Analysis
	Points   []SuspensionPoint

	// Segments[0] holds the blocks reachable from the function entry,
	// Segments[p] those reachable after resuming at point p, without
	// passing another suspension point.
	Segments [][]int

	Continuation string
	NumLocals    int
}

// Depth returns the operand stack height below the awaited future.
func (p *SuspensionPoint) Depth() int {
	return len(p.Stack)
}

// field returns the record field holding pos.
func (p *SuspensionPoint) field(pos uint32) (int, bool) {
	for k, l := range p.Live {
		if l == pos {
			return k, true
		}
	}
	return 0, false
}

// plan analyzes a function with suspend calls at sites and lays out its
// state machine. The unit is not modified.
func (e *Engine) plan(u *bytecode.Unit, an *Analyzer, fn *bytecode.Function, instrs []bytecode.Instruction, sites []int) (*StateMachine, error) {
	g, err := ir.Build(fn.Name, instrs, fn.Handlers, sites...)
	if err != nil {
		return nil, err
	}
	analysis, err := an.Analyze(fn, instrs, g)
	if err != nil {
		return nil, err
	}

	sm := &StateMachine{
		Analysis:     analysis,
		Continuation: fn.Name + bytecode.ContinuationSuffix,
		NumLocals:    int(fn.MaxLocals),
	}
	la := NewLivenessAnalyzer(u, sm.NumLocals)
	live := la.ComputeForCallSites(analysis, instrs, sites)

	for _, s := range sites {
		if !analysis.Reachable(s) {
			continue
		}
		frame := analysis.Frames[s]
		depth := len(frame.Stack) - 1
		pt := SuspensionPoint{
			Await: u.Symbols[instrs[s].Imm.(bytecode.InvokeImm).Symbol],
			Stack: append([]bytecode.Type(nil), frame.Stack[:depth]...),
			ID:    len(sm.Points) + 1,
			Instr: s,
		}
		set := live[s]
		set.ClearFrom(la.StackPos(depth))
		for _, pos := range set.ToSlice() {
			var t bytecode.Type
			if la.IsLocal(pos) {
				t = frame.Locals[pos]
			} else {
				t = frame.Stack[int(pos)-sm.NumLocals]
			}
			if t.Kind == bytecode.KindTop || t.Kind == bytecode.KindVoid {
				continue
			}
			pt.Live = append(pt.Live, pos)
			pt.Fields = append(pt.Fields, t)
		}
		sm.Points = append(sm.Points, pt)
	}
	if len(sm.Points) == 0 {
		return sm, nil
	}

	isPoint := make(map[int]bool, len(sm.Points))
	for _, pt := range sm.Points {
		isPoint[g.BlockOf(pt.Instr)] = true
	}
	cut := func(b int) bool { return isPoint[b] }

	sm.Segments = append(sm.Segments, ir.Members(g.Reachable([]int{g.Entry}, cut)))
	for _, pt := range sm.Points {
		roots := []int{g.BlockOf(pt.Instr + 1)}
		for _, k := range g.Covering(pt.Instr) {
			roots = append(roots, g.Handlers[k].Entry)
		}
		sm.Segments = append(sm.Segments, ir.Members(g.Reachable(roots, cut)))
	}
	return sm, nil
}

// emitter carries what both emitted functions share.
type emitter struct {
	unit   *bytecode.Unit
	fn     *bytecode.Function
	instrs []bytecode.Instruction
	sm     *StateMachine
	graph  *ir.Graph

	pointAt map[int]int

	isDone  uint32
	join    uint32
	suspend uint32
	errNew  uint32

	contName    uint32
	resultClass uint32
	badIndex    uint32

	// scratch is the first local past the original ones; it holds the
	// awaited future, then the saved operand stack.
	scratch uint32
}

func newEmitter(u *bytecode.Unit, fn *bytecode.Function, instrs []bytecode.Instruction, sm *StateMachine) *emitter {
	future := bytecode.Ref(bytecode.ClassFuture)
	em := &emitter{
		unit:    u,
		fn:      fn,
		instrs:  instrs,
		sm:      sm,
		graph:   sm.Analysis.Graph,
		pointAt: make(map[int]int, len(sm.Points)),
		scratch: uint32(sm.NumLocals),
	}
	for p := range sm.Points {
		em.pointAt[sm.Points[p].Instr] = p
	}

	em.isDone = u.AddSymbol(bytecode.Symbol{Owner: bytecode.OwnerFuture, Name: "isDone", Params: []bytecode.Type{future}, Result: bytecode.Int})
	em.join = u.AddSymbol(bytecode.Symbol{Owner: bytecode.OwnerFuture, Name: "join", Params: []bytecode.Type{future}, Result: bytecode.Ref(bytecode.ClassObject)})
	em.suspend = u.AddSymbol(bytecode.Symbol{
		Owner: bytecode.OwnerMachine,
		Name:  "suspend",
		Params: []bytecode.Type{
			bytecode.Ref(bytecode.ClassMachine),
			future,
			bytecode.Ref(bytecode.ClassState),
			bytecode.Int,
			bytecode.Ref(bytecode.ClassString),
		},
		Result: future,
	})
	em.errNew = u.AddSymbol(bytecode.Symbol{Owner: bytecode.ClassError, Name: "new", Params: []bytecode.Type{bytecode.Ref(bytecode.ClassString)}, Result: bytecode.Ref(bytecode.ClassError)})
	em.contName = u.AddString(sm.Continuation)
	em.resultClass = u.AddString(fn.Result.Class)
	em.badIndex = u.AddString("invalid resumption index")

	for p := range sm.Points {
		pt := &sm.Points[p]
		pt.Layout = u.AddRecord(bytecode.RecordLayout{
			Function: fn.Name,
			Point:    uint32(pt.ID),
			Fields:   pt.Fields,
		})
	}
	return em
}

// home is the local a continuation parameter is moved to, past the
// original locals and the scratch area.
func (em *emitter) home(param int) uint32 {
	maxDepth := 0
	for _, pt := range em.sm.Points {
		if pt.Depth() > maxDepth {
			maxDepth = pt.Depth()
		}
	}
	return em.scratch + 1 + uint32(maxDepth) + uint32(param)
}

type labels struct {
	start []codegen.Label
	end   []codegen.Label
}

func (em *emitter) blockLabels(e *codegen.Emitter) labels {
	n := len(em.graph.Blocks)
	l := labels{start: make([]codegen.Label, n), end: make([]codegen.Label, n)}
	for b := 0; b < n; b++ {
		l.start[b] = e.NewLabel()
		l.end[b] = e.NewLabel()
	}
	return l
}

// adaptResult makes the joined value match what the suspend call
// returned in the original code.
func (em *emitter) adaptResult(e *codegen.Emitter, pt *SuspensionPoint) {
	switch r := pt.Await.Result; {
	case r.Kind == bytecode.KindVoid:
		e.Pop()
	case r.Class != bytecode.ClassObject:
		e.CheckCast(em.unit.AddString(r.Class))
	}
}

// copyBlocks emits every included block in original order, expanding
// each suspension point into a fast-path check, and remaps the handler
// table onto the copy. It returns the slow-path label of each point.
func (em *emitter) copyBlocks(e *codegen.Emitter, l labels, include []bool) (map[int]codegen.Label, error) {
	g := em.graph
	slow := make(map[int]codegen.Label)
	target := func(t uint32) codegen.Label { return l.start[g.BlockOf(int(t))] }

	for b := range g.Blocks {
		if !include[b] {
			continue
		}
		blk := &g.Blocks[b]
		e.Bind(l.start[b])
		for i := blk.Start; i < blk.End; i++ {
			ins := em.instrs[i]
			if p, ok := em.pointAt[i]; ok {
				s := e.NewLabel()
				slow[p] = s
				e.Dup().Invoke(em.isDone).Branch(bytecode.OpIfZero, s).Invoke(em.join)
				em.adaptResult(e, &em.sm.Points[p])
				continue
			}
			switch {
			case ins.Opcode == bytecode.OpSwitch:
				sw := ins.Imm.(bytecode.SwitchImm)
				ts := make([]codegen.Label, len(sw.Targets))
				for k, t := range sw.Targets {
					ts[k] = target(t)
				}
				e.Switch(sw.Low, ts, target(sw.Default))
			case ins.IsBranch():
				e.Branch(ins.Opcode, target(ins.Targets()[0]))
			default:
				e.Emit(ins)
			}
		}
		e.Bind(l.end[b])
	}

	for _, h := range g.Handlers {
		first, last := -1, -1
		for b := h.First; b <= h.Last; b++ {
			if include[b] {
				if first < 0 {
					first = b
				}
				last = b
			}
		}
		if first < 0 {
			continue
		}
		if !include[h.Entry] {
			return nil, errors.Internal(errors.PhaseTransform, em.fn.Name, "handler entry outside the emitted segments")
		}
		e.Handler(l.start[first], l.end[last], l.start[h.Entry], h.Class, h.Region, h.Kind)
	}
	return slow, nil
}

// suspendBlock saves the live state of point p and hands the pending
// future to the runtime. machine is the local holding the machine, or
// negative to pass null.
func (em *emitter) suspendBlock(e *codegen.Emitter, p int, at codegen.Label, machine int) {
	pt := &em.sm.Points[p]
	e.Bind(at).Store(em.scratch)
	for j := pt.Depth() - 1; j >= 0; j-- {
		e.Store(em.scratch + 1 + uint32(j))
	}
	if machine < 0 {
		e.Null()
	} else {
		e.Load(uint32(machine))
	}
	e.Load(em.scratch)
	for _, pos := range pt.Live {
		if int(pos) < em.sm.NumLocals {
			e.Load(pos)
		} else {
			e.Load(em.scratch + 1 + pos - uint32(em.sm.NumLocals))
		}
	}
	e.NewRec(pt.Layout).IConst(int64(pt.ID)).SConst(em.contName).Invoke(em.suspend)
	if em.fn.Result.Class != bytecode.ClassFuture {
		e.CheckCast(em.resultClass)
	}
	e.RetVal()
}

func union(n int, segments [][]int) []bool {
	set := make([]bool, n)
	for _, seg := range segments {
		for _, b := range seg {
			set[b] = true
		}
	}
	return set
}

// rewritten emits the body of the original function: every reachable
// block, with a suspend path per point.
func (em *emitter) rewritten(frames codegen.FrameFunc) (*bytecode.Function, error) {
	e := codegen.NewEmitter()
	l := em.blockLabels(e)
	slow, err := em.copyBlocks(e, l, union(len(em.graph.Blocks), em.sm.Segments))
	if err != nil {
		return nil, err
	}
	for p := range em.sm.Points {
		em.suspendBlock(e, p, slow[p], -1)
	}

	proto := *em.fn
	proto.Flags |= bytecode.FlagTransformed
	return codegen.Build(em.unit, e, proto, frames)
}

// continuation emits name$async: a dispatcher on the resumption index,
// one restore stub per point, then the blocks that can run after a
// resumption.
func (em *emitter) continuation(frames codegen.FrameFunc) (*bytecode.Function, error) {
	hm, hidx, hrec, hfut := em.home(0), em.home(1), em.home(2), em.home(3)

	e := codegen.NewEmitter()
	l := em.blockLabels(e)
	// Highest first: a home may reuse a parameter slot already read.
	homes := []uint32{hm, hidx, hrec, hfut}
	for k := len(homes) - 1; k >= 0; k-- {
		e.Load(uint32(k)).Store(homes[k])
	}

	stubs := make([]codegen.Label, len(em.sm.Points))
	for p := range stubs {
		stubs[p] = e.NewLabel()
	}
	bad := e.NewLabel()
	e.Load(hidx).Switch(1, stubs, bad)
	e.Bind(bad).SConst(em.badIndex).Invoke(em.errNew).Throw()

	type span struct{ start, end codegen.Label }
	joins := make([]span, len(em.sm.Points))
	for p := range em.sm.Points {
		pt := &em.sm.Points[p]
		e.Bind(stubs[p])
		for k, pos := range pt.Live {
			if int(pos) < em.sm.NumLocals {
				e.Load(hrec).RecGet(pt.Layout, uint32(k)).Store(pos)
			}
		}
		for j := 0; j < pt.Depth(); j++ {
			if k, ok := pt.field(uint32(em.sm.NumLocals + j)); ok {
				e.Load(hrec).RecGet(pt.Layout, uint32(k))
			} else if pt.Stack[j].Kind == bytecode.KindInt {
				e.IConst(0)
			} else {
				e.Null()
			}
		}
		joins[p] = span{e.NewLabel(), e.NewLabel()}
		e.Bind(joins[p].start).Load(hfut).Invoke(em.join)
		em.adaptResult(e, pt)
		e.Bind(joins[p].end).Goto(l.start[em.graph.BlockOf(pt.Instr+1)])
	}

	slow, err := em.copyBlocks(e, l, union(len(em.graph.Blocks), em.sm.Segments[1:]))
	if err != nil {
		return nil, err
	}
	for p := range em.sm.Points {
		pt := &em.sm.Points[p]
		for _, k := range em.graph.Covering(pt.Instr) {
			h := &em.graph.Handlers[k]
			e.Handler(joins[p].start, joins[p].end, l.start[h.Entry], h.Class, h.Region, h.Kind)
		}
	}
	for p := range em.sm.Points {
		if s, ok := slow[p]; ok {
			em.suspendBlock(e, p, s, int(hm))
		}
	}

	return codegen.Build(em.unit, e, bytecode.Function{
		Name: em.sm.Continuation,
		Params: []bytecode.Type{
			bytecode.Ref(bytecode.ClassMachine),
			bytecode.Int,
			bytecode.Ref(bytecode.ClassState),
			bytecode.Ref(bytecode.ClassFuture),
		},
		Result:    em.fn.Result,
		MaxLocals: hfut + 1,
		Flags:     bytecode.FlagTransformed | bytecode.FlagContinuation,
	}, frames)
}
