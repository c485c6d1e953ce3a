package engine

import (
	"fmt"

	"github.com/electronicarts/ea-async/bytecode"
)

// SuspendMatcher decides which call targets are suspend intrinsics.
type SuspendMatcher interface {
	Match(owner, name string) bool
}

// FunctionMatcher selects functions by name.
type FunctionMatcher interface {
	MatchFunction(name string) bool
}

type defaultMatcher struct{}

func (defaultMatcher) Match(owner, name string) bool {
	return owner == bytecode.OwnerAwait && name == "await"
}

// DefaultMatcher matches the standard async/Await.await intrinsic.
var DefaultMatcher SuspendMatcher = defaultMatcher{}

// locate returns the indices of the suspend calls in instrs, in order.
func (e *Engine) locate(u *bytecode.Unit, instrs []bytecode.Instruction) []int {
	var sites []int
	for i, ins := range instrs {
		if ins.Opcode != bytecode.OpInvoke {
			continue
		}
		sym := u.Symbols[ins.Imm.(bytecode.InvokeImm).Symbol]
		if sym.Owner != "" && e.matcher.Match(sym.Owner, sym.Name) {
			sites = append(sites, i)
		}
	}
	return sites
}

// checkUsage returns the diagnostic for a function whose suspend calls
// cannot be transformed, or "" when every call is usable.
func (e *Engine) checkUsage(u *bytecode.Unit, classes *bytecode.Hierarchy, fn *bytecode.Function,
	instrs []bytecode.Instruction, sites []int) string {
	if !isFuture(classes, fn.Result) {
		return fmt.Sprintf("Invalid use of await in %s: the result type %s is not a Future", fn.Name, fn.Result)
	}
	for _, i := range sites {
		sym := u.Symbols[instrs[i].Imm.(bytecode.InvokeImm).Symbol]
		if len(sym.Params) != 1 || !isFuture(classes, sym.Params[0]) {
			return fmt.Sprintf("Invalid use of await in %s: %s must take a single Future", fn.Name, sym)
		}
		if sym.Result.Kind != bytecode.KindVoid && sym.Result.Kind != bytecode.KindRef {
			return fmt.Sprintf("Invalid use of await in %s: %s must return a reference", fn.Name, sym)
		}
	}
	if j := u.FindFunction(fn.Name + bytecode.ContinuationSuffix); j >= 0 {
		return fmt.Sprintf("Invalid use of await in %s: %s%s is already defined", fn.Name, fn.Name, bytecode.ContinuationSuffix)
	}
	return ""
}
