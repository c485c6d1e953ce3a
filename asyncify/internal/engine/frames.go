package engine

import (
	"strconv"

	"github.com/electronicarts/ea-async/asyncify/internal/handler"
	"github.com/electronicarts/ea-async/asyncify/internal/ir"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// Analysis holds the frame analysis of one function.
type Analysis struct {
	Graph *ir.Graph

	// Frames[i] is the frame before instruction i, nil when i is
	// unreachable.
	Frames []*handler.Frame

	// BlockIn[b] is the entry frame of block b, nil when unreachable.
	BlockIn []*handler.Frame

	// Resolutions lists the type every deferred null resolved to,
	// one entry per consuming instruction and slot. Only diagnostics
	// read it; their count is logged with each transformed function.
	Resolutions []handler.Resolution
}

// Reachable reports whether instruction i can execute.
func (a *Analysis) Reachable(i int) bool {
	return a.Frames[i] != nil
}

// Analyzer runs frame analysis over the functions of one unit.
type Analyzer struct {
	unit     *bytecode.Unit
	classes  *bytecode.Hierarchy
	registry *handler.Registry
}

// NewAnalyzer creates an analyzer for u.
func NewAnalyzer(u *bytecode.Unit, classes *bytecode.Hierarchy, registry *handler.Registry) *Analyzer {
	if registry == nil {
		registry = handler.Default()
	}
	return &Analyzer{unit: u, classes: classes, registry: registry}
}

// Analyze propagates frames over g to a fixpoint, then records the
// frame of every reachable instruction.
func (a *Analyzer) Analyze(fn *bytecode.Function, instrs []bytecode.Instruction, g *ir.Graph) (*Analysis, error) {
	if missing := a.registry.MissingHandlers(opcodesOf(instrs)); len(missing) > 0 {
		return nil, errors.New(errors.PhaseAnalyze, errors.KindUnsupported).
			Function(fn.Name).
			Detail("no handler for opcode %s", bytecode.OpcodeName(missing[0])).
			Build()
	}

	entry := &handler.Frame{Locals: make([]bytecode.Type, fn.MaxLocals)}
	for i := range entry.Locals {
		entry.Locals[i] = bytecode.Top
	}
	copy(entry.Locals, fn.Params)

	in := make([]*handler.Frame, len(g.Blocks))
	in[g.Entry] = entry

	queued := make([]bool, len(g.Blocks))
	work := []int{g.Entry}
	queued[g.Entry] = true

	flow := func(to int, f *handler.Frame, at int) error {
		if in[to] == nil {
			in[to] = f.Clone()
		} else {
			changed, slot, ok := mergeFrame(a.classes, in[to], f)
			if !ok {
				return a.joinError(fn, g.Blocks[to].Start, at, slot)
			}
			if !changed {
				return nil
			}
		}
		if !queued[to] {
			queued[to] = true
			work = append(work, to)
		}
		return nil
	}

	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		queued[b] = false

		out, err := a.walk(fn, instrs, g, b, in[b], nil, func(i int, before *handler.Frame) error {
			for _, k := range g.Covering(i) {
				h := &g.Handlers[k]
				if err := flow(h.Entry, a.handlerFrame(h, before), i); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, s := range g.Blocks[b].Succs {
			if err := flow(s, out, g.Blocks[b].Last()); err != nil {
				return nil, err
			}
		}
	}

	an := &Analysis{Graph: g, Frames: make([]*handler.Frame, len(instrs)), BlockIn: in}
	seen := make(map[[2]int]bool)
	for b := range g.Blocks {
		if in[b] == nil {
			continue
		}
		var resolved []handler.Resolution
		if _, err := a.walk(fn, instrs, g, b, in[b], &resolved, func(i int, before *handler.Frame) error {
			an.Frames[i] = before.Clone()
			return nil
		}); err != nil {
			return nil, err
		}
		for _, r := range resolved {
			key := [2]int{r.Instr, r.Slot}
			if !seen[key] {
				seen[key] = true
				an.Resolutions = append(an.Resolutions, r)
			}
		}
	}
	return an, nil
}

// walk applies the handlers of block b to a copy of its entry frame and
// returns the exit frame. visit sees the frame before each instruction.
func (a *Analyzer) walk(fn *bytecode.Function, instrs []bytecode.Instruction, g *ir.Graph, b int, entry *handler.Frame,
	resolved *[]handler.Resolution, visit func(i int, before *handler.Frame) error) (*handler.Frame, error) {
	ctx := &handler.Context{
		Unit:     a.unit,
		Classes:  a.classes,
		Frame:    entry.Clone(),
		Result:   fn.Result,
		Function: fn.Name,
	}
	blk := &g.Blocks[b]
	for i := blk.Start; i < blk.End; i++ {
		ctx.Instr = i
		if err := visit(i, ctx.Frame); err != nil {
			return nil, err
		}
		ins := instrs[i]
		if err := a.registry.Get(ins.Opcode).Handle(ctx, ins); err != nil {
			return nil, err
		}
	}
	if resolved != nil {
		*resolved = ctx.Resolved
	}
	return ctx.Frame, nil
}

// handlerFrame is the entry frame a handler sees when instruction state
// before faults: the locals as they were and the caught error alone on
// the stack.
func (a *Analyzer) handlerFrame(h *ir.HandlerEntry, before *handler.Frame) *handler.Frame {
	class := h.Class
	if class == "" {
		class = bytecode.ClassError
	}
	return &handler.Frame{
		Locals: append([]bytecode.Type(nil), before.Locals...),
		Stack:  []bytecode.Type{bytecode.Ref(class)},
	}
}

func (a *Analyzer) joinError(fn *bytecode.Function, target, from, slot int) error {
	b := errors.New(errors.PhaseAnalyze, errors.KindTypeMismatch).
		Function(fn.Name).
		Instr(target)
	if slot < 0 {
		return b.Detail("stack height differs when joining from %d", from).Build()
	}
	return b.Path("stack", strconv.Itoa(slot)).
		Detail("incompatible stack types when joining from %d", from).
		Build()
}

// BlockFrames builds the graph of a function and returns its frame table:
// the entry frame of every reachable block, in instruction order.
func (a *Analyzer) BlockFrames(fn *bytecode.Function, instrs []bytecode.Instruction) ([]bytecode.Frame, error) {
	g, err := ir.Build(fn.Name, instrs, fn.Handlers)
	if err != nil {
		return nil, err
	}
	an, err := a.Analyze(fn, instrs, g)
	if err != nil {
		return nil, err
	}
	var out []bytecode.Frame
	for b := range g.Blocks {
		if an.BlockIn[b] != nil {
			out = append(out, an.BlockIn[b].Export(g.Blocks[b].Start))
		}
	}
	return out, nil
}

func opcodesOf(instrs []bytecode.Instruction) []byte {
	var seen [256]bool
	var out []byte
	for _, ins := range instrs {
		if !seen[ins.Opcode] {
			seen[ins.Opcode] = true
			out = append(out, ins.Opcode)
		}
	}
	return out
}
