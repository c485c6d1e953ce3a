package parser

import (
	"fmt"
	"strings"

	"github.com/electronicarts/ea-async/asm/internal/token"
	"github.com/electronicarts/ea-async/bytecode"
)

func (p *Parser) parseUnit() (*bytecode.Unit, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("unit"); err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if t == nil {
			return nil, fmt.Errorf("unexpected end of input")
		}
		if t.Type == token.RParen {
			p.next()
			break
		}

		var err error
		switch form := p.peekForm(); form {
		case "class":
			err = p.parseClass()
		case "import":
			err = p.parseImport()
		case "record":
			err = p.parseRecord()
		case "func":
			err = p.parseFuncHeader()
		default:
			err = fmt.Errorf("line %d: unexpected unit field %q", t.Line, form)
		}
		if err != nil {
			return nil, err
		}
	}

	if t := p.peek(); t != nil {
		return nil, fmt.Errorf("line %d: trailing input after unit", t.Line)
	}

	for _, pf := range p.pending {
		if err := p.parseFuncBody(pf); err != nil {
			return nil, fmt.Errorf("func %s: %w", p.unit.Functions[pf.index].Name, err)
		}
	}

	return p.unit, nil
}

// (class Name [Super])
func (p *Parser) parseClass() error {
	p.pos += 2
	name, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	c := bytecode.Class{Name: name.Value}
	if t := p.peek(); t != nil && t.Type == token.Ident {
		p.next()
		if t.Value != bytecode.ClassObject {
			c.Super = t.Value
		}
	}
	p.unit.Classes = append(p.unit.Classes, c)
	_, err = p.expect(token.RParen)
	return err
}

// (import $id Owner Name [(param ...)] [(result T)])
// Owner "." names a function of the same unit.
func (p *Parser) parseImport() error {
	p.pos += 2
	id, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(id.Value, "$") {
		return fmt.Errorf("line %d: import id must start with $", id.Line)
	}
	if _, dup := p.symbols[id.Value]; dup {
		return fmt.Errorf("line %d: duplicate import %s", id.Line, id.Value)
	}
	owner, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	params, result, err := p.parseSignature()
	if err != nil {
		return err
	}
	sym := bytecode.Symbol{Owner: owner.Value, Name: name.Value, Params: params, Result: result}
	if sym.Owner == "." {
		sym.Owner = ""
	}
	p.symbols[id.Value] = p.unit.AddSymbol(sym)
	_, err = p.expect(token.RParen)
	return err
}

// (record Function Point (fields T...))
func (p *Parser) parseRecord() error {
	p.pos += 2
	fn, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	point, err := p.parseU32()
	if err != nil {
		return err
	}
	if p.peekForm() != "fields" {
		return fmt.Errorf("line %d: record needs (fields ...)", fn.Line)
	}
	p.pos += 2
	fields, err := p.parseTypes()
	if err != nil {
		return err
	}
	p.unit.AddRecord(bytecode.RecordLayout{Function: fn.Value, Point: point, Fields: fields})
	_, err = p.expect(token.RParen)
	return err
}

// (func $name [(param ...)] [(result T)] [(locals N)] [(stack N)] [(flags ...)] body...)
func (p *Parser) parseFuncHeader() error {
	start := p.pos
	p.pos += 2
	id, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(id.Value, "$") {
		return fmt.Errorf("line %d: function id must start with $", id.Line)
	}
	if _, dup := p.funcs[id.Value]; dup {
		return fmt.Errorf("line %d: duplicate function %s", id.Line, id.Value)
	}

	params, result, err := p.parseSignature()
	if err != nil {
		return err
	}
	fn := bytecode.Function{Name: strings.TrimPrefix(id.Value, "$"), Params: params, Result: result}
	pf := pendingFunc{index: len(p.unit.Functions), locals: -1, stack: -1}

	for {
		switch p.peekForm() {
		case "locals":
			p.pos += 2
			n, err := p.parseU32()
			if err != nil {
				return err
			}
			pf.locals = int(n)
		case "stack":
			p.pos += 2
			n, err := p.parseU32()
			if err != nil {
				return err
			}
			pf.stack = int(n)
		case "flags":
			p.pos += 2
			for {
				t := p.peek()
				if t == nil || t.Type != token.Ident {
					break
				}
				p.next()
				switch t.Value {
				case "transformed":
					fn.Flags |= bytecode.FlagTransformed
				case "continuation":
					fn.Flags |= bytecode.FlagContinuation
				default:
					return fmt.Errorf("line %d: unknown flag %q", t.Line, t.Value)
				}
			}
		default:
			pf.bodyStart = p.pos
			p.funcs[id.Value] = pf.index
			p.unit.Functions = append(p.unit.Functions, fn)
			p.pending = append(p.pending, pf)
			p.pos = start
			return p.skipForm()
		}
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
	}
}
