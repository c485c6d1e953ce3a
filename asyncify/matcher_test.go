package asyncify

import "testing"

func TestExactMatcher(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		method   string
		patterns []string
		want     bool
	}{
		{
			name:     "match by method name only",
			patterns: []string{"await"},
			owner:    "async/Await",
			method:   "await",
			want:     true,
		},
		{
			name:     "match by Owner.name",
			patterns: []string{"async/Await.await"},
			owner:    "async/Await",
			method:   "await",
			want:     true,
		},
		{
			name:     "no match different owner",
			patterns: []string{"async/Await.await"},
			owner:    "my/Tasks",
			method:   "await",
			want:     false,
		},
		{
			name:     "no match different name",
			patterns: []string{"await"},
			owner:    "async/Await",
			method:   "join",
			want:     false,
		},
		{
			name:     "multiple patterns",
			patterns: []string{"get", "join", "my/Tasks.block"},
			owner:    "my/Tasks",
			method:   "join",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewExactMatcher(tt.patterns)
			got := m.Match(tt.owner, tt.method)
			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.owner, tt.method, got, tt.want)
			}
		})
	}
}

func TestDefaultMatcher(t *testing.T) {
	if !DefaultMatcher.Match("async/Await", "await") {
		t.Error("default matcher must match async/Await.await")
	}
	if DefaultMatcher.Match("Future", "join") {
		t.Error("default matcher must not match Future.join")
	}
}

func TestWildcardMatcher(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		method   string
		patterns []string
		want     bool
	}{
		{"match all", "any/Owner", "anything", []string{"*"}, true},
		{"owner wildcard", "my/Tasks", "get", []string{"my/Tasks.*"}, true},
		{"owner wildcard other owner", "my/Other", "get", []string{"my/Tasks.*"}, false},
		{"exact", "async/Await", "await", []string{"async/Await.await"}, true},
		{"exact wrong method", "async/Await", "other", []string{"async/Await.await"}, false},
		{"name only", "my/Tasks", "block", []string{"block"}, true},
		{"mixed", "my/Tasks", "get", []string{"async/Await.await", "my/Tasks.*"}, true},
		{"no patterns", "async/Await", "await", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWildcardMatcher(tt.patterns)
			got := m.Match(tt.owner, tt.method)
			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.owner, tt.method, got, tt.want)
			}
		})
	}
}

func TestCompositeMatcher(t *testing.T) {
	composite := NewCompositeMatcher(
		NewExactMatcher([]string{"async/Await.await"}),
		NewWildcardMatcher([]string{"my/Tasks.*"}),
	)

	tests := []struct {
		owner  string
		method string
		want   bool
	}{
		{"async/Await", "await", true},
		{"my/Tasks", "get", true},
		{"Future", "join", false},
	}

	for _, tt := range tests {
		got := composite.Match(tt.owner, tt.method)
		if got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.owner, tt.method, got, tt.want)
		}
	}
}

func TestFunctionNameMatcher(t *testing.T) {
	m := NewFunctionNameMatcher([]string{"load", "save", "fetch"})

	tests := []struct {
		name string
		want bool
	}{
		{"load", true},
		{"save", true},
		{"fetch", true},
		{"loadAll", false},
		{"load$async", false},
		{"", false},
	}

	for _, tt := range tests {
		got := m.MatchFunction(tt.name)
		if got != tt.want {
			t.Errorf("MatchFunction(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFunctionPrefixMatcher(t *testing.T) {
	m := NewFunctionPrefixMatcher([]string{"test_", "bench_"})

	tests := []struct {
		name string
		want bool
	}{
		{"test_load", true},
		{"bench_save", true},
		{"load", false},
		{"test", false},
		{"", false},
	}

	for _, tt := range tests {
		got := m.MatchFunction(tt.name)
		if got != tt.want {
			t.Errorf("MatchFunction(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCompositeFunctionMatcher(t *testing.T) {
	exact := NewFunctionNameMatcher([]string{"special"})
	prefix := NewFunctionPrefixMatcher([]string{"test_"})
	composite := NewCompositeFunctionMatcher(exact, prefix)

	tests := []struct {
		name string
		want bool
	}{
		{"special", true},
		{"test_read", true},
		{"read", false},
		{"specia", false},
	}

	for _, tt := range tests {
		got := composite.MatchFunction(tt.name)
		if got != tt.want {
			t.Errorf("MatchFunction(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
