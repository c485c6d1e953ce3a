package bytecode

import (
	"github.com/electronicarts/ea-async/bytecode/internal/binary"
)

// Encode encodes the unit to its binary form. Strings referenced by
// classes, symbols, records or functions but missing from the pool are
// appended after the existing entries, so instruction string indices
// stay valid.
func (u *Unit) Encode() []byte {
	e := &encoder{pool: make(map[string]uint32, len(u.Strings))}
	for _, s := range u.Strings {
		e.intern(s)
	}

	var classes, symbols, records, functions []byte

	if len(u.Classes) > 0 {
		sec := binary.NewWriter()
		sec.WriteLen(len(u.Classes))
		for _, c := range u.Classes {
			sec.WriteU32(e.intern(c.Name))
			e.optStr(sec, c.Super)
		}
		classes = sec.Bytes()
	}

	if len(u.Symbols) > 0 {
		sec := binary.NewWriter()
		sec.WriteLen(len(u.Symbols))
		for _, s := range u.Symbols {
			e.optStr(sec, s.Owner)
			sec.WriteU32(e.intern(s.Name))
			e.types(sec, s.Params)
			e.typ(sec, s.Result)
		}
		symbols = sec.Bytes()
	}

	if len(u.Records) > 0 {
		sec := binary.NewWriter()
		sec.WriteLen(len(u.Records))
		for _, l := range u.Records {
			sec.WriteU32(e.intern(l.Function))
			sec.WriteU32(l.Point)
			e.types(sec, l.Fields)
		}
		records = sec.Bytes()
	}

	if len(u.Functions) > 0 {
		sec := binary.NewWriter()
		sec.WriteLen(len(u.Functions))
		for i := range u.Functions {
			e.function(sec, &u.Functions[i])
		}
		functions = sec.Bytes()
	}

	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	for _, cs := range u.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		w.Section(SectionCustom, sec.Bytes())
	}

	if len(e.strings) > 0 {
		sec := binary.NewWriter()
		sec.WriteLen(len(e.strings))
		for _, s := range e.strings {
			sec.WriteName(s)
		}
		w.Section(SectionStrings, sec.Bytes())
	}
	if classes != nil {
		w.Section(SectionClasses, classes)
	}
	if symbols != nil {
		w.Section(SectionSymbols, symbols)
	}
	if records != nil {
		w.Section(SectionRecords, records)
	}
	if functions != nil {
		w.Section(SectionFunctions, functions)
	}

	return w.Bytes()
}

type encoder struct {
	pool    map[string]uint32
	strings []string
}

func (e *encoder) intern(s string) uint32 {
	if idx, ok := e.pool[s]; ok {
		return idx
	}
	idx := uint32(len(e.strings))
	e.pool[s] = idx
	e.strings = append(e.strings, s)
	return idx
}

func (e *encoder) optStr(w *binary.Writer, s string) {
	if s == "" {
		w.WriteU32(0)
		return
	}
	w.WriteU32(e.intern(s) + 1)
}

func (e *encoder) typ(w *binary.Writer, t Type) {
	switch t.Kind {
	case KindVoid:
		w.Byte(tagVoid)
	case KindInt:
		w.Byte(tagInt)
	case KindNull:
		w.Byte(tagNull)
	case KindTop:
		w.Byte(tagTop)
	default:
		w.Byte(tagRef)
		w.WriteU32(e.intern(t.Class))
	}
}

func (e *encoder) types(w *binary.Writer, ts []Type) {
	w.WriteLen(len(ts))
	for _, t := range ts {
		e.typ(w, t)
	}
}

func (e *encoder) function(w *binary.Writer, f *Function) {
	w.WriteU32(e.intern(f.Name))
	w.Byte(f.Flags)
	e.types(w, f.Params)
	e.typ(w, f.Result)
	w.WriteU32(f.MaxStack)
	w.WriteU32(f.MaxLocals)
	w.WriteLen(len(f.Code))
	w.WriteBytes(f.Code)

	w.WriteLen(len(f.Handlers))
	for _, h := range f.Handlers {
		w.WriteU32(h.Start)
		w.WriteU32(h.End)
		w.WriteU32(h.Target)
		e.optStr(w, h.Class)
		w.WriteU32(h.Region)
		w.Byte(h.Kind)
	}

	w.WriteLen(len(f.Frames))
	for _, fr := range f.Frames {
		w.WriteU32(fr.Instr)
		e.types(w, fr.Locals)
		e.types(w, fr.Stack)
	}
}
