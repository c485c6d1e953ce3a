package asyncify

import (
	"strings"

	"github.com/electronicarts/ea-async/asyncify/internal/engine"
	"github.com/electronicarts/ea-async/bytecode"
)

// SuspendMatcher determines which call targets are suspend intrinsics.
//
// A call matches on its symbol's owner class and name. Only calls to
// symbols outside the unit are considered.
type SuspendMatcher = engine.SuspendMatcher

// DefaultMatcher matches async/Await.await, the standard intrinsic.
var DefaultMatcher = NewExactMatcher([]string{bytecode.OwnerAwait + ".await"})

// ExactMatcher matches exact "Owner.name" or just "name" patterns.
type ExactMatcher struct {
	patterns map[string]bool
}

// NewExactMatcher creates a matcher from a list of patterns.
// Patterns can be "name" (matches any owner) or "Owner.name" (exact match).
func NewExactMatcher(patterns []string) *ExactMatcher {
	m := &ExactMatcher{patterns: make(map[string]bool)}
	for _, p := range patterns {
		m.patterns[p] = true
	}
	return m
}

// Match returns true if the call target matches any pattern.
func (m *ExactMatcher) Match(owner, name string) bool {
	if m.patterns[owner+"."+name] {
		return true
	}
	return m.patterns[name]
}

// WildcardMatcher matches call targets with wildcard support.
//
// Supports patterns like:
//   - "Owner.name" - exact match
//   - "name" - matches any owner with this method name
//   - "Owner.*" - matches every method of Owner
//   - "*" - matches everything
//
// Owners may contain slashes ("async/Await"); the method name is what
// follows the last dot.
type WildcardMatcher struct {
	exact      map[string]bool // exact "Owner.name" matches
	names      map[string]bool // unqualified "name" matches
	ownerWilds map[string]bool // "Owner.*" matches
	matchAll   bool            // "*" matches everything
}

// NewWildcardMatcher creates a matcher with wildcard support.
func NewWildcardMatcher(patterns []string) *WildcardMatcher {
	m := &WildcardMatcher{
		exact:      make(map[string]bool),
		names:      make(map[string]bool),
		ownerWilds: make(map[string]bool),
	}
	for _, p := range patterns {
		if p == "*" {
			m.matchAll = true
		} else if strings.HasSuffix(p, ".*") {
			m.ownerWilds[strings.TrimSuffix(p, ".*")] = true
		} else if strings.Contains(p, ".") {
			m.exact[p] = true
		} else {
			m.names[p] = true
		}
	}
	return m
}

// Match returns true if the call target matches any pattern.
func (m *WildcardMatcher) Match(owner, name string) bool {
	if m.matchAll {
		return true
	}
	if m.ownerWilds[owner] {
		return true
	}
	if m.exact[owner+"."+name] {
		return true
	}
	return m.names[name]
}

// CompositeMatcher combines multiple matchers.
type CompositeMatcher struct {
	matchers []SuspendMatcher
}

// NewCompositeMatcher creates a matcher that matches if any sub-matcher matches.
func NewCompositeMatcher(matchers ...SuspendMatcher) *CompositeMatcher {
	return &CompositeMatcher{matchers: matchers}
}

// Match returns true if any sub-matcher matches.
func (m *CompositeMatcher) Match(owner, name string) bool {
	for _, matcher := range m.matchers {
		if matcher.Match(owner, name) {
			return true
		}
	}
	return false
}

// FunctionMatcher selects functions by name, e.g. to exclude them from
// the transform.
type FunctionMatcher = engine.FunctionMatcher

// FunctionNameMatcher matches functions by exact name.
type FunctionNameMatcher struct {
	names map[string]bool
}

// NewFunctionNameMatcher creates a matcher from a list of function names.
func NewFunctionNameMatcher(names []string) *FunctionNameMatcher {
	m := &FunctionNameMatcher{names: make(map[string]bool)}
	for _, n := range names {
		m.names[n] = true
	}
	return m
}

// MatchFunction returns true if the function name matches.
func (m *FunctionNameMatcher) MatchFunction(name string) bool {
	return m.names[name]
}

// FunctionPrefixMatcher matches functions by name prefix.
type FunctionPrefixMatcher struct {
	prefixes []string
}

// NewFunctionPrefixMatcher creates a matcher that matches functions starting with any prefix.
func NewFunctionPrefixMatcher(prefixes []string) *FunctionPrefixMatcher {
	return &FunctionPrefixMatcher{prefixes: prefixes}
}

// MatchFunction returns true if the function name starts with any prefix.
func (m *FunctionPrefixMatcher) MatchFunction(name string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// CompositeFunctionMatcher combines multiple function matchers.
type CompositeFunctionMatcher struct {
	matchers []FunctionMatcher
}

// NewCompositeFunctionMatcher creates a matcher that matches if any sub-matcher matches.
func NewCompositeFunctionMatcher(matchers ...FunctionMatcher) *CompositeFunctionMatcher {
	return &CompositeFunctionMatcher{matchers: matchers}
}

// MatchFunction returns true if any sub-matcher matches.
func (m *CompositeFunctionMatcher) MatchFunction(name string) bool {
	for _, matcher := range m.matchers {
		if matcher.MatchFunction(name) {
			return true
		}
	}
	return false
}
