package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/asyncify/internal/codegen"
	"github.com/electronicarts/ea-async/asyncify/internal/handler"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// ErrUnchanged is returned by Transform when no function of the unit
// needed rewriting.
var ErrUnchanged = errors.New(errors.PhaseTransform, errors.KindInvalidInput).
	Detail("unit has no functions to transform").
	Build()

// Config controls an Engine.
type Config struct {
	Matcher  SuspendMatcher         // suspend intrinsics; DefaultMatcher when nil
	Exclude  FunctionMatcher        // functions left untouched, may be nil
	Loader   bytecode.ClassResolver // classes not declared by the unit, may be nil
	Registry *handler.Registry      // instruction handlers; handler.Default() when nil
	Logger   *zap.Logger
	Sink     func(msg string) // receives user-facing diagnostics
	Verify   bool             // re-verify emitted functions
}

// Engine rewrites the functions of a unit into resumable state machines.
type Engine struct {
	matcher  SuspendMatcher
	exclude  FunctionMatcher
	loader   bytecode.ClassResolver
	registry *handler.Registry
	logger   *zap.Logger
	sink     func(string)
	verify   bool
}

// New creates an engine from cfg.
func New(cfg Config) *Engine {
	e := &Engine{
		matcher:  cfg.Matcher,
		exclude:  cfg.Exclude,
		loader:   cfg.Loader,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		sink:     cfg.Sink,
		verify:   cfg.Verify,
	}
	if e.matcher == nil {
		e.matcher = DefaultMatcher
	}
	if e.registry == nil {
		e.registry = handler.Default()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// DefaultRegistry returns a registry covering the whole instruction set.
func DefaultRegistry() *handler.Registry {
	return handler.Default()
}

func (e *Engine) report(msg string) {
	e.logger.Warn("transform diagnostic", zap.String("message", msg))
	if e.sink != nil {
		e.sink(msg)
	}
}

// Transform rewrites every function of the encoded unit that contains a
// suspend call. It returns ErrUnchanged when there is nothing to do.
func (e *Engine) Transform(data []byte) ([]byte, error) {
	u, err := bytecode.ParseUnit(data)
	if err != nil {
		e.report(fmt.Sprintf("Failed to parse unit: %v", err))
		return nil, errors.Decode("", err)
	}

	classes := bytecode.NewHierarchy(u, e.loader)
	an := NewAnalyzer(u, classes, e.registry)

	original := len(u.Functions)
	var changed []int
	var added []bytecode.Function
	for i := 0; i < original; i++ {
		rewritten, cont, err := e.TransformFunction(u, classes, an, i)
		if err != nil {
			return nil, err
		}
		if rewritten == nil {
			continue
		}
		u.Functions[i] = *rewritten
		changed = append(changed, i)
		added = append(added, *cont)
	}
	if len(changed) == 0 {
		return nil, ErrUnchanged
	}
	for _, c := range added {
		changed = append(changed, len(u.Functions))
		u.Functions = append(u.Functions, c)
	}

	out := u.Encode()
	if e.verify {
		if err := e.verifyOutput(out, changed); err != nil {
			return nil, err
		}
	}
	e.logger.Info("unit transformed",
		zap.Int("functions", original),
		zap.Int("rewritten", len(added)))
	return out, nil
}

// TransformFunction rewrites function index of u. Both results are nil
// when the function is skipped. Accepted records, symbols and strings are
// added to u; the function table itself is left to the caller.
func (e *Engine) TransformFunction(u *bytecode.Unit, classes *bytecode.Hierarchy, an *Analyzer, index int) (*bytecode.Function, *bytecode.Function, error) {
	fn := &u.Functions[index]
	if fn.IsTransformed() || fn.IsContinuation() {
		return nil, nil, nil
	}
	if e.exclude != nil && e.exclude.MatchFunction(fn.Name) {
		e.logger.Debug("function excluded", zap.String("function", fn.Name))
		return nil, nil, nil
	}

	instrs, err := u.DecodeFunction(index)
	if err != nil {
		e.report(fmt.Sprintf("Failed to decode %s: %v", fn.Name, err))
		return nil, nil, errors.Decode(fn.Name, err)
	}
	sites := e.locate(u, instrs)
	if len(sites) == 0 {
		return nil, nil, nil
	}
	if msg := e.checkUsage(u, classes, fn, instrs, sites); msg != "" {
		e.report(msg)
		return nil, nil, nil
	}

	sm, err := e.plan(u, an, fn, instrs, sites)
	if err != nil {
		e.report(fmt.Sprintf("Failed to analyze %s: %v", fn.Name, err))
		return nil, nil, err
	}
	if len(sm.Points) == 0 {
		e.logger.Debug("suspend calls unreachable", zap.String("function", fn.Name))
		return nil, nil, nil
	}

	em := newEmitter(u, fn, instrs, sm)
	rewritten, err := em.rewritten(an.BlockFrames)
	if err != nil {
		return nil, nil, err
	}
	cont, err := em.continuation(an.BlockFrames)
	if err != nil {
		return nil, nil, err
	}

	if ce := e.logger.Check(zap.DebugLevel, "function transformed"); ce != nil {
		live := make([]int, len(sm.Points))
		for p := range sm.Points {
			live[p] = len(sm.Points[p].Live)
		}
		ce.Write(
			zap.String("function", fn.Name),
			zap.Int("points", len(sm.Points)),
			zap.Int("segments", len(sm.Segments)),
			zap.Ints("live", live),
			zap.Int("resolutions", len(sm.Analysis.Resolutions)),
			zap.Int("stack", int(rewritten.MaxStack)),
			zap.Int("locals", int(cont.MaxLocals)))
	}
	return rewritten, cont, nil
}

// Plan runs the analysis of function index of u without emitting code.
// It returns nil when the function has no usable suspend calls.
func (e *Engine) Plan(u *bytecode.Unit, index int) (*StateMachine, error) {
	classes := bytecode.NewHierarchy(u, e.loader)
	fn := &u.Functions[index]
	instrs, err := u.DecodeFunction(index)
	if err != nil {
		return nil, errors.Decode(fn.Name, err)
	}
	sites := e.locate(u, instrs)
	if len(sites) == 0 {
		return nil, nil
	}
	if msg := e.checkUsage(u, classes, fn, instrs, sites); msg != "" {
		return nil, errors.IllegalUsage(fn.Name, sites[0], msg)
	}
	return e.plan(u, NewAnalyzer(u, classes, e.registry), fn, instrs, sites)
}

func (e *Engine) verifyOutput(out []byte, indices []int) error {
	u, err := bytecode.ParseUnit(out)
	if err != nil {
		return errors.Verify("", err)
	}
	an := NewAnalyzer(u, bytecode.NewHierarchy(u, e.loader), e.registry)
	for _, i := range indices {
		if err := codegen.Verify(u, i, an.BlockFrames); err != nil {
			e.logger.Error("emitted function failed verification",
				zap.String("function", u.Functions[i].Name),
				zap.Error(err))
			return err
		}
	}
	return nil
}
