package parser

import (
	"fmt"
	"strings"

	"github.com/electronicarts/ea-async/asm/internal/token"
	"github.com/electronicarts/ea-async/bytecode"
)

// labelRef is a branch or handler operand waiting for its label.
type labelRef struct {
	name  string
	line  int
	apply func(target uint32)
}

type funcState struct {
	instrs   []bytecode.Instruction
	labels   map[string]uint32
	refs     []labelRef
	handlers []bytecode.Handler
	frames   []bytecode.Frame
}

func (p *Parser) parseFuncBody(pf pendingFunc) error {
	p.pos = pf.bodyStart
	fs := &funcState{labels: make(map[string]uint32)}

	for {
		t := p.peek()
		if t == nil {
			return fmt.Errorf("unexpected end of input")
		}
		if t.Type == token.RParen {
			p.next()
			break
		}

		var err error
		switch form := p.peekForm(); form {
		case "label":
			err = p.parseLabel(fs)
		case "catch", "cleanup":
			err = p.parseHandler(fs, form)
		case "frame":
			err = p.parseFrame(fs)
		case "":
			err = p.parseInstr(fs)
		default:
			err = fmt.Errorf("line %d: unexpected form %q in function body", t.Line, form)
		}
		if err != nil {
			return err
		}
	}

	for _, ref := range fs.refs {
		target, ok := fs.labels[ref.name]
		if !ok {
			return fmt.Errorf("line %d: unknown label %s", ref.line, ref.name)
		}
		ref.apply(target)
	}

	fn := &p.unit.Functions[pf.index]
	fn.Code = bytecode.EncodeInstructions(fs.instrs)
	fn.Handlers = fs.handlers
	fn.Frames = fs.frames

	locals := len(fn.Params)
	for _, ins := range fs.instrs {
		if imm, ok := ins.Imm.(bytecode.LocalImm); ok && int(imm.Local) >= locals {
			locals = int(imm.Local) + 1
		}
	}
	if pf.locals > locals {
		locals = pf.locals
	}
	fn.MaxLocals = uint32(locals)

	if pf.stack >= 0 {
		fn.MaxStack = uint32(pf.stack)
		return nil
	}
	bound, err := p.unit.MaxStack(fs.instrs, fs.handlers)
	if err != nil {
		return fmt.Errorf("%w (declare (stack N) to assemble it anyway)", err)
	}
	fn.MaxStack = bound
	return nil
}

// (label $name)
func (p *Parser) parseLabel(fs *funcState) error {
	p.pos += 2
	id, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if _, dup := fs.labels[id.Value]; dup {
		return fmt.Errorf("line %d: duplicate label %s", id.Line, id.Value)
	}
	fs.labels[id.Value] = uint32(len(fs.instrs))
	_, err = p.expect(token.RParen)
	return err
}

// (catch Start End Target [Class] [(region N)]) or (cleanup Start End Target [(region N)])
func (p *Parser) parseHandler(fs *funcState, form string) error {
	p.pos += 2
	idx := len(fs.handlers)
	h := bytecode.Handler{Region: uint32(idx + 1)}
	if form == "cleanup" {
		h.Kind = bytecode.HandlerCleanup
	}
	fs.handlers = append(fs.handlers, h)

	setters := []func(uint32){
		func(v uint32) { fs.handlers[idx].Start = v },
		func(v uint32) { fs.handlers[idx].End = v },
		func(v uint32) { fs.handlers[idx].Target = v },
	}
	for _, set := range setters {
		if err := p.parseTarget(fs, set); err != nil {
			return err
		}
	}

	if t := p.peek(); t != nil && t.Type == token.Ident {
		p.next()
		if form == "cleanup" {
			return fmt.Errorf("line %d: cleanup handlers catch every error", t.Line)
		}
		if t.Value != "any" {
			fs.handlers[idx].Class = t.Value
		}
	}
	if p.peekForm() == "region" {
		p.pos += 2
		region, err := p.parseU32()
		if err != nil {
			return err
		}
		fs.handlers[idx].Region = region
		if _, err := p.expect(token.RParen); err != nil {
			return err
		}
	}
	_, err := p.expect(token.RParen)
	return err
}

// (frame N (locals T...) (stack T...))
func (p *Parser) parseFrame(fs *funcState) error {
	p.pos += 2
	instr, err := p.parseU32()
	if err != nil {
		return err
	}
	fr := bytecode.Frame{Instr: instr, Locals: []bytecode.Type{}, Stack: []bytecode.Type{}}
	for _, part := range []string{"locals", "stack"} {
		if p.peekForm() != part {
			return fmt.Errorf("frame %d: expected (%s ...)", instr, part)
		}
		p.pos += 2
		ts, err := p.parseTypes()
		if err != nil {
			return err
		}
		if part == "locals" {
			fr.Locals = append(fr.Locals, ts...)
		} else {
			fr.Stack = append(fr.Stack, ts...)
		}
	}
	fs.frames = append(fs.frames, fr)
	_, err = p.expect(token.RParen)
	return err
}

// parseTarget reads a label reference or a literal instruction index.
func (p *Parser) parseTarget(fs *funcState, set func(uint32)) error {
	t := p.peek()
	if t == nil {
		return fmt.Errorf("unexpected end of input")
	}
	if t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		p.next()
		fs.refs = append(fs.refs, labelRef{name: t.Value, line: t.Line, apply: set})
		return nil
	}
	v, err := p.parseU32()
	if err != nil {
		return err
	}
	set(v)
	return nil
}

func (p *Parser) parseInstr(fs *funcState) error {
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	op, ok := bytecode.LookupOpcode(t.Value)
	if !ok {
		return fmt.Errorf("line %d: unknown instruction %q", t.Line, t.Value)
	}

	idx := len(fs.instrs)
	ins := bytecode.Instruction{Opcode: op}

	switch op {
	case bytecode.OpIConst:
		v, err := p.parseInt(64)
		if err != nil {
			return err
		}
		ins.Imm = bytecode.ConstImm{Value: v}

	case bytecode.OpSConst:
		s, err := p.expect(token.String)
		if err != nil {
			return err
		}
		ins.Imm = bytecode.StringImm{Index: p.unit.AddString(s.Value)}

	case bytecode.OpLoad, bytecode.OpStore:
		v, err := p.parseU32()
		if err != nil {
			return err
		}
		ins.Imm = bytecode.LocalImm{Local: v}

	case bytecode.OpGoto, bytecode.OpIfZero, bytecode.OpIfNonZero, bytecode.OpIfLt,
		bytecode.OpIfNull, bytecode.OpIfNonNull:
		ins.Imm = bytecode.BranchImm{}
		err := p.parseTarget(fs, func(v uint32) {
			fs.instrs[idx].Imm = bytecode.BranchImm{Target: v}
		})
		if err != nil {
			return err
		}

	case bytecode.OpSwitch:
		low, err := p.parseInt(32)
		if err != nil {
			return err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return err
		}
		imm := bytecode.SwitchImm{Low: int32(low)}
		for {
			if pt := p.peek(); pt != nil && pt.Type == token.RParen {
				p.next()
				break
			}
			k := len(imm.Targets)
			imm.Targets = append(imm.Targets, 0)
			err := p.parseTarget(fs, func(v uint32) {
				sw := fs.instrs[idx].Imm.(bytecode.SwitchImm)
				sw.Targets[k] = v
			})
			if err != nil {
				return err
			}
		}
		ins.Imm = imm
		err = p.parseTarget(fs, func(v uint32) {
			sw := fs.instrs[idx].Imm.(bytecode.SwitchImm)
			sw.Default = v
			fs.instrs[idx].Imm = sw
		})
		if err != nil {
			return err
		}

	case bytecode.OpInvoke:
		sym, err := p.parseSymbolRef()
		if err != nil {
			return err
		}
		ins.Imm = bytecode.InvokeImm{Symbol: sym}

	case bytecode.OpCheckCast, bytecode.OpInstanceOf:
		c, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		ins.Imm = bytecode.ClassImm{Class: p.unit.AddString(c.Value)}

	case bytecode.OpNewRec:
		v, err := p.parseU32()
		if err != nil {
			return err
		}
		ins.Imm = bytecode.RecordImm{Layout: v}

	case bytecode.OpRecGet:
		layout, err := p.parseU32()
		if err != nil {
			return err
		}
		field, err := p.parseU32()
		if err != nil {
			return err
		}
		ins.Imm = bytecode.FieldImm{Layout: layout, Field: field}
	}

	fs.instrs = append(fs.instrs, ins)
	return nil
}

// parseSymbolRef resolves an import id, a function id or a symbol index.
func (p *Parser) parseSymbolRef() (uint32, error) {
	t := p.peek()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input")
	}
	if t.Type != token.Ident {
		return p.parseU32()
	}
	p.next()
	if idx, ok := p.symbols[t.Value]; ok {
		return idx, nil
	}
	if fi, ok := p.funcs[t.Value]; ok {
		fn := p.unit.Functions[fi]
		return p.unit.AddSymbol(bytecode.Symbol{Name: fn.Name, Params: fn.Params, Result: fn.Result}), nil
	}
	return 0, fmt.Errorf("line %d: unknown call target %s", t.Line, t.Value)
}
