package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/electronicarts/ea-async/asm/internal/token"
	"github.com/electronicarts/ea-async/bytecode"
)

type Parser struct {
	unit    *bytecode.Unit
	symbols map[string]uint32 // import ids
	funcs   map[string]int    // function ids
	pending []pendingFunc
	tokens  []token.Token
	pos     int
}

// pendingFunc is a function whose header is parsed and whose body is
// parsed once every function signature is known.
type pendingFunc struct {
	index     int
	bodyStart int
	locals    int
	stack     int
}

func New(tokens []token.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		unit:    &bytecode.Unit{},
		symbols: make(map[string]uint32),
		funcs:   make(map[string]int),
	}
}

func (p *Parser) Parse() (*bytecode.Unit, error) {
	return p.parseUnit()
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of input")
	}
	if t.Type != typ {
		return nil, fmt.Errorf("line %d: expected %v, got %q", t.Line, typ, t.Value)
	}
	return t, nil
}

func (p *Parser) expectKeyword(kw string) error {
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if t.Value != kw {
		return fmt.Errorf("line %d: expected %q, got %q", t.Line, kw, t.Value)
	}
	return nil
}

// peekForm reports the keyword of the parenthesised form at the cursor.
func (p *Parser) peekForm() string {
	if p.pos+1 >= len(p.tokens) || p.tokens[p.pos].Type != token.LParen {
		return ""
	}
	if t := p.tokens[p.pos+1]; t.Type == token.Ident {
		return t.Value
	}
	return ""
}

// skipForm skips a balanced parenthesised form starting at the cursor.
func (p *Parser) skipForm() error {
	depth := 0
	for {
		t := p.next()
		if t == nil {
			return fmt.Errorf("unexpected end of input")
		}
		switch t.Type {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

func (p *Parser) parseInt(bits int) (int64, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(t.Value, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid number %q", t.Line, t.Value)
	}
	return v, nil
}

func (p *Parser) parseU32() (uint32, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(t.Value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid index %q", t.Line, t.Value)
	}
	return uint32(v), nil
}

func (p *Parser) parseType() (bytecode.Type, error) {
	t, err := p.expect(token.Ident)
	if err != nil {
		return bytecode.Type{}, err
	}
	if strings.HasPrefix(t.Value, "$") {
		return bytecode.Type{}, fmt.Errorf("line %d: %s is not a type", t.Line, t.Value)
	}
	return bytecode.ParseType(t.Value), nil
}

// parseTypes parses types up to the closing paren of the current form.
func (p *Parser) parseTypes() ([]bytecode.Type, error) {
	var out []bytecode.Type
	for {
		t := p.peek()
		if t == nil {
			return nil, fmt.Errorf("unexpected end of input")
		}
		if t.Type == token.RParen {
			p.next()
			return out, nil
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, typ)
	}
}

// parseSignature parses optional (param ...) and (result T) forms.
func (p *Parser) parseSignature() ([]bytecode.Type, bytecode.Type, error) {
	params := []bytecode.Type{}
	result := bytecode.Void
	if p.peekForm() == "param" {
		p.pos += 2
		ts, err := p.parseTypes()
		if err != nil {
			return nil, result, err
		}
		params = append(params, ts...)
	}
	if p.peekForm() == "result" {
		p.pos += 2
		typ, err := p.parseType()
		if err != nil {
			return nil, result, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, result, err
		}
		result = typ
	}
	return params, result, nil
}
