package engine

import (
	"github.com/electronicarts/ea-async/asyncify/internal/handler"
	"github.com/electronicarts/ea-async/bytecode"
)

// joinType merges two types meeting at a join point. ok is false when the
// two cannot be reconciled.
func joinType(classes *bytecode.Hierarchy, a, b bytecode.Type) (bytecode.Type, bool) {
	switch {
	case a == b:
		return a, true
	case a.Kind == bytecode.KindNull && b.Kind == bytecode.KindRef:
		return b, true
	case a.Kind == bytecode.KindRef && b.Kind == bytecode.KindNull:
		return a, true
	case a.Kind == bytecode.KindRef && b.Kind == bytecode.KindRef:
		return bytecode.Ref(classes.CommonAncestor(a.Class, b.Class)), true
	}
	return bytecode.Top, false
}

// mergeFrame folds src into dst. Conflicting locals become Top; a
// conflicting stack slot or a differing stack height is reported as the
// index of the offending slot (-1 for the height).
func mergeFrame(classes *bytecode.Hierarchy, dst, src *handler.Frame) (changed bool, slot int, ok bool) {
	if len(dst.Stack) != len(src.Stack) {
		return false, -1, false
	}
	for i := range dst.Stack {
		t, ok := joinType(classes, dst.Stack[i], src.Stack[i])
		if !ok {
			return false, i, false
		}
		if t != dst.Stack[i] {
			dst.Stack[i] = t
			changed = true
		}
	}
	for i := range dst.Locals {
		t, ok := joinType(classes, dst.Locals[i], src.Locals[i])
		if !ok {
			t = bytecode.Top
		}
		if t != dst.Locals[i] {
			dst.Locals[i] = t
			changed = true
		}
	}
	return changed, 0, true
}

// isFuture reports whether t is a reference to Future or a subclass.
func isFuture(classes *bytecode.Hierarchy, t bytecode.Type) bool {
	return t.Kind == bytecode.KindRef && classes.IsSubclass(t.Class, bytecode.ClassFuture)
}
