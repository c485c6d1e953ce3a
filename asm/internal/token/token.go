package token

import (
	"fmt"
	"strconv"
	"unicode"
)

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	String
	Number
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

func isIdentChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) ||
		c == '_' || c == '.' || c == '$' || c == '-' || c == '/' || c == '<' || c == '>'
}

// Tokenize splits assembly source into tokens. String values are
// returned unquoted.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == ';' && i+1 < len(runes) && runes[i+1] == ';' {
			for i+1 < len(runes) && runes[i+1] != '\n' {
				i++
			}
			continue
		}

		if r == '(' {
			tokens = append(tokens, Token{"(", LParen, line})
			continue
		}
		if r == ')' {
			tokens = append(tokens, Token{")", RParen, line})
			continue
		}

		if r == '"' {
			start := i
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' {
					i++
				}
				if i < len(runes) && runes[i] == '\n' {
					return nil, fmt.Errorf("line %d: newline in string literal", line)
				}
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("line %d: unterminated string literal", line)
			}
			s, err := strconv.Unquote(string(runes[start : i+1]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			tokens = append(tokens, Token{s, String, line})
			continue
		}

		if r == '-' || r == '+' || unicode.IsDigit(r) {
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == 'x' ||
				(runes[i] >= 'a' && runes[i] <= 'f') || (runes[i] >= 'A' && runes[i] <= 'F')) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		if isIdentChar(r) {
			start := i
			for i < len(runes) && isIdentChar(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, line})
			i--
			continue
		}

		return nil, fmt.Errorf("line %d: unexpected character %q", line, r)
	}

	return tokens, nil
}
