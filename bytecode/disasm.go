package bytecode

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Disassemble writes u in the text form accepted by the asm package.
func Disassemble(w io.Writer, u *Unit) error {
	p := &printer{w: w}
	p.line(0, "(unit")
	for _, c := range u.Classes {
		if c.Super == "" {
			p.line(1, "(class %s)", c.Name)
		} else {
			p.line(1, "(class %s %s)", c.Name, c.Super)
		}
	}
	for i, s := range u.Symbols {
		owner := s.Owner
		if owner == "" {
			owner = "."
		}
		p.line(1, "(import $sym%d %s %s%s)", i, owner, s.Name, signature(s.Params, s.Result))
	}
	for _, l := range u.Records {
		p.line(1, "(record %s %d (fields%s))", l.Function, l.Point, typeList(l.Fields))
	}
	for i := range u.Functions {
		if err := p.function(u, i); err != nil {
			return err
		}
	}
	p.line(0, ")")
	return p.err
}

// DisassembleFunction writes a single function of u.
func DisassembleFunction(w io.Writer, u *Unit, index int) error {
	p := &printer{w: w}
	if err := p.function(u, index); err != nil {
		return err
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(indent int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", indent), fmt.Sprintf(format, args...))
}

func (p *printer) function(u *Unit, idx int) error {
	f := &u.Functions[idx]
	instrs, err := u.DecodeFunction(idx)
	if err != nil {
		return fmt.Errorf("function %q: %w", f.Name, err)
	}

	header := fmt.Sprintf("(func $%s%s (locals %d) (stack %d)", f.Name, signature(f.Params, f.Result), f.MaxLocals, f.MaxStack)
	if f.Flags != 0 {
		var flags []string
		if f.IsTransformed() {
			flags = append(flags, "transformed")
		}
		if f.IsContinuation() {
			flags = append(flags, "continuation")
		}
		header += " (flags " + strings.Join(flags, " ") + ")"
	}
	p.line(1, "%s", header)

	labels := make(map[uint32]bool)
	for _, ins := range instrs {
		for _, t := range ins.Targets() {
			labels[t] = true
		}
	}
	for _, h := range f.Handlers {
		labels[h.Start] = true
		labels[h.End] = true
		labels[h.Target] = true
	}

	for _, h := range f.Handlers {
		kind := "catch"
		if h.Kind == HandlerCleanup {
			kind = "cleanup"
		}
		class := ""
		if h.Kind == HandlerCatch && h.Class != "" {
			class = " " + h.Class
		}
		p.line(2, "(%s $L%d $L%d $L%d%s (region %d))", kind, h.Start, h.End, h.Target, class, h.Region)
	}

	frames := append([]Frame(nil), f.Frames...)
	sort.Slice(frames, func(a, b int) bool { return frames[a].Instr < frames[b].Instr })
	for _, fr := range frames {
		p.line(2, "(frame %d (locals%s) (stack%s))", fr.Instr, typeList(fr.Locals), typeList(fr.Stack))
	}

	for pc, ins := range instrs {
		if labels[uint32(pc)] {
			p.line(2, "(label $L%d)", pc)
		}
		p.line(2, "%s", formatInstruction(u, ins))
	}
	if labels[uint32(len(instrs))] {
		p.line(2, "(label $L%d)", len(instrs))
	}
	p.line(1, ")")
	return nil
}

func formatInstruction(u *Unit, ins Instruction) string {
	name := OpcodeName(ins.Opcode)
	switch imm := ins.Imm.(type) {
	case ConstImm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case StringImm:
		return fmt.Sprintf("%s %s", name, strconv.Quote(u.Strings[imm.Index]))
	case LocalImm:
		return fmt.Sprintf("%s %d", name, imm.Local)
	case BranchImm:
		return fmt.Sprintf("%s $L%d", name, imm.Target)
	case SwitchImm:
		targets := make([]string, len(imm.Targets))
		for i, t := range imm.Targets {
			targets[i] = fmt.Sprintf("$L%d", t)
		}
		return fmt.Sprintf("%s %d (%s) $L%d", name, imm.Low, strings.Join(targets, " "), imm.Default)
	case InvokeImm:
		return fmt.Sprintf("%s $sym%d ;; %s", name, imm.Symbol, u.Symbols[imm.Symbol])
	case ClassImm:
		return fmt.Sprintf("%s %s", name, u.Strings[imm.Class])
	case RecordImm:
		return fmt.Sprintf("%s %d", name, imm.Layout)
	case FieldImm:
		return fmt.Sprintf("%s %d %d", name, imm.Layout, imm.Field)
	}
	return name
}

func signature(params []Type, result Type) string {
	s := ""
	if len(params) > 0 {
		s += " (param" + typeList(params) + ")"
	}
	if result.Kind != KindVoid {
		s += " (result " + result.String() + ")"
	}
	return s
}

func typeList(ts []Type) string {
	var b strings.Builder
	for _, t := range ts {
		b.WriteByte(' ')
		b.WriteString(t.String())
	}
	return b.String()
}
