package token

import (
	"testing"
)

func TestTokenize(t *testing.T) {
	src := `(import $await async/Await await) ;; comment
	iconst -12 sconst "a\"b\n" goto $L0`

	tokens, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	want := []Token{
		{"(", LParen, 1},
		{"import", Ident, 1},
		{"$await", Ident, 1},
		{"async/Await", Ident, 1},
		{"await", Ident, 1},
		{")", RParen, 1},
		{"iconst", Ident, 2},
		{"-12", Number, 2},
		{"sconst", Ident, 2},
		{"a\"b\n", String, 2},
		{"goto", Ident, 2},
		{"$L0", Ident, 2},
	}

	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: got %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []string{
		`sconst "unterminated`,
		"sconst \"line\nbreak\"",
		`iconst 1 # 2`,
	}
	for _, src := range tests {
		if _, err := Tokenize(src); err == nil {
			t.Errorf("Tokenize(%q): expected error", src)
		}
	}
}

func TestTypeString(t *testing.T) {
	if Ident.String() != "identifier" || LParen.String() != "'('" {
		t.Error("unexpected token type names")
	}
}
