package bytecode

import (
	"errors"
	"fmt"
	"io"

	"github.com/electronicarts/ea-async/bytecode/internal/binary"
)

var (
	ErrInvalidMagic   = errors.New("invalid unit magic")
	ErrInvalidVersion = errors.New("invalid unit version")
)

// ParseUnit parses a unit binary and validates every function body.
func ParseUnit(data []byte) (*Unit, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	u := &Unit{}
	var lastSection byte

	for {
		sectionID, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			if sectionID <= lastSection {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSection = sectionID
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(sectionData)
		d := &decoder{r: sr, u: u}

		switch sectionID {
		case SectionCustom:
			err = d.customSection()
		case SectionStrings:
			err = d.stringSection()
		case SectionClasses:
			err = d.classSection()
		case SectionSymbols:
			err = d.symbolSection()
		case SectionRecords:
			err = d.recordSection()
		case SectionFunctions:
			err = d.functionSection()
		default:
			return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
		}
		if err != nil {
			return nil, fmt.Errorf("%s section: %w", sectionName(sectionID), err)
		}
		if sr.Len() != 0 {
			return nil, fmt.Errorf("%s section: %d trailing bytes", sectionName(sectionID), sr.Len())
		}
	}

	for i := range u.Functions {
		if _, err := u.DecodeFunction(i); err != nil {
			return nil, fmt.Errorf("function %q: %w", u.Functions[i].Name, err)
		}
	}

	return u, nil
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionStrings:
		return "strings"
	case SectionClasses:
		return "classes"
	case SectionSymbols:
		return "symbols"
	case SectionRecords:
		return "records"
	case SectionFunctions:
		return "functions"
	}
	return fmt.Sprintf("section(%d)", id)
}

type decoder struct {
	r *binary.Reader
	u *Unit
}

func (d *decoder) str() (string, error) {
	idx, err := d.r.ReadU32()
	if err != nil {
		return "", err
	}
	if int(idx) >= len(d.u.Strings) {
		return "", fmt.Errorf("string index %d out of range (%d strings)", idx, len(d.u.Strings))
	}
	return d.u.Strings[idx], nil
}

// optStr reads a string index biased by one; zero means absent.
func (d *decoder) optStr() (string, error) {
	idx, err := d.r.ReadU32()
	if err != nil {
		return "", err
	}
	if idx == 0 {
		return "", nil
	}
	if int(idx-1) >= len(d.u.Strings) {
		return "", fmt.Errorf("string index %d out of range (%d strings)", idx-1, len(d.u.Strings))
	}
	return d.u.Strings[idx-1], nil
}

func (d *decoder) typ() (Type, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return Type{}, err
	}
	switch tag {
	case tagVoid:
		return Void, nil
	case tagInt:
		return Int, nil
	case tagNull:
		return Null, nil
	case tagTop:
		return Top, nil
	case tagRef:
		name, err := d.str()
		if err != nil {
			return Type{}, err
		}
		return Ref(name), nil
	}
	return Type{}, fmt.Errorf("invalid type tag 0x%02x", tag)
}

func (d *decoder) types() ([]Type, error) {
	n, err := d.r.ReadLen()
	if err != nil {
		return nil, err
	}
	out := make([]Type, n)
	for i := range out {
		if out[i], err = d.typ(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) customSection() error {
	name, err := d.r.ReadName()
	if err != nil {
		return err
	}
	rest, err := d.r.ReadRemaining()
	if err != nil {
		return err
	}
	d.u.CustomSections = append(d.u.CustomSections, CustomSection{Name: name, Data: rest})
	return nil
}

func (d *decoder) stringSection() error {
	n, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	d.u.Strings = make([]string, n)
	for i := range d.u.Strings {
		if d.u.Strings[i], err = d.r.ReadName(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) classSection() error {
	n, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	d.u.Classes = make([]Class, n)
	for i := range d.u.Classes {
		c := &d.u.Classes[i]
		if c.Name, err = d.str(); err != nil {
			return err
		}
		if c.Super, err = d.optStr(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) symbolSection() error {
	n, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	d.u.Symbols = make([]Symbol, n)
	for i := range d.u.Symbols {
		s := &d.u.Symbols[i]
		if s.Owner, err = d.optStr(); err != nil {
			return err
		}
		if s.Name, err = d.str(); err != nil {
			return err
		}
		if s.Params, err = d.types(); err != nil {
			return err
		}
		if s.Result, err = d.typ(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) recordSection() error {
	n, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	d.u.Records = make([]RecordLayout, n)
	for i := range d.u.Records {
		l := &d.u.Records[i]
		if l.Function, err = d.str(); err != nil {
			return err
		}
		if l.Point, err = d.r.ReadU32(); err != nil {
			return err
		}
		if l.Fields, err = d.types(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) functionSection() error {
	n, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	d.u.Functions = make([]Function, n)
	for i := range d.u.Functions {
		if err := d.function(&d.u.Functions[i]); err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
	}
	return nil
}

func (d *decoder) function(f *Function) error {
	var err error
	if f.Name, err = d.str(); err != nil {
		return err
	}
	if f.Flags, err = d.r.ReadByte(); err != nil {
		return err
	}
	if f.Params, err = d.types(); err != nil {
		return err
	}
	if f.Result, err = d.typ(); err != nil {
		return err
	}
	if f.MaxStack, err = d.r.ReadU32(); err != nil {
		return err
	}
	if f.MaxLocals, err = d.r.ReadU32(); err != nil {
		return err
	}
	codeLen, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	if f.Code, err = d.r.ReadBytes(codeLen); err != nil {
		return err
	}

	nh, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	f.Handlers = make([]Handler, nh)
	for i := range f.Handlers {
		h := &f.Handlers[i]
		if h.Start, err = d.r.ReadU32(); err != nil {
			return err
		}
		if h.End, err = d.r.ReadU32(); err != nil {
			return err
		}
		if h.Target, err = d.r.ReadU32(); err != nil {
			return err
		}
		if h.Class, err = d.optStr(); err != nil {
			return err
		}
		if h.Region, err = d.r.ReadU32(); err != nil {
			return err
		}
		if h.Kind, err = d.r.ReadByte(); err != nil {
			return err
		}
	}

	nf, err := d.r.ReadLen()
	if err != nil {
		return err
	}
	f.Frames = make([]Frame, nf)
	for i := range f.Frames {
		fr := &f.Frames[i]
		if fr.Instr, err = d.r.ReadU32(); err != nil {
			return err
		}
		if fr.Locals, err = d.types(); err != nil {
			return err
		}
		if fr.Stack, err = d.types(); err != nil {
			return err
		}
	}
	return nil
}
