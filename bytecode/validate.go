package bytecode

import "fmt"

// DecodeFunction decodes function i and checks that every index it
// carries is in range: branch targets, handler ranges, locals, symbols,
// strings and record layouts.
func (u *Unit) DecodeFunction(i int) ([]Instruction, error) {
	if i < 0 || i >= len(u.Functions) {
		return nil, fmt.Errorf("function index %d out of range", i)
	}
	f := &u.Functions[i]

	instrs, err := DecodeInstructions(f.Code)
	if err != nil {
		return nil, err
	}
	if len(instrs) == 0 {
		return nil, fmt.Errorf("empty function body")
	}
	if uint32(len(f.Params)) > f.MaxLocals {
		return nil, fmt.Errorf("%d params exceed %d locals", len(f.Params), f.MaxLocals)
	}

	n := uint32(len(instrs))
	for pc, ins := range instrs {
		for _, t := range ins.Targets() {
			if t >= n {
				return nil, fmt.Errorf("instruction %d: branch target %d out of range (%d instructions)", pc, t, n)
			}
		}
		switch imm := ins.Imm.(type) {
		case LocalImm:
			if imm.Local >= f.MaxLocals {
				return nil, fmt.Errorf("instruction %d: local %d out of range (max %d)", pc, imm.Local, f.MaxLocals)
			}
		case StringImm:
			if int(imm.Index) >= len(u.Strings) {
				return nil, fmt.Errorf("instruction %d: string %d out of range", pc, imm.Index)
			}
		case ClassImm:
			if int(imm.Class) >= len(u.Strings) {
				return nil, fmt.Errorf("instruction %d: class string %d out of range", pc, imm.Class)
			}
		case InvokeImm:
			if int(imm.Symbol) >= len(u.Symbols) {
				return nil, fmt.Errorf("instruction %d: symbol %d out of range", pc, imm.Symbol)
			}
		case RecordImm:
			if int(imm.Layout) >= len(u.Records) {
				return nil, fmt.Errorf("instruction %d: record layout %d out of range", pc, imm.Layout)
			}
		case FieldImm:
			if int(imm.Layout) >= len(u.Records) {
				return nil, fmt.Errorf("instruction %d: record layout %d out of range", pc, imm.Layout)
			}
			if int(imm.Field) >= len(u.Records[imm.Layout].Fields) {
				return nil, fmt.Errorf("instruction %d: field %d out of range", pc, imm.Field)
			}
		}
	}

	for k, h := range f.Handlers {
		if h.Start >= h.End || h.End > n {
			return nil, fmt.Errorf("handler %d: invalid range [%d, %d)", k, h.Start, h.End)
		}
		if h.Target >= n {
			return nil, fmt.Errorf("handler %d: target %d out of range", k, h.Target)
		}
		if h.Kind != HandlerCatch && h.Kind != HandlerCleanup {
			return nil, fmt.Errorf("handler %d: unknown kind %d", k, h.Kind)
		}
	}

	return instrs, nil
}

// StackEffect returns how many values ins pops and pushes.
func (u *Unit) StackEffect(ins Instruction) (pops, pushes int) {
	switch ins.Opcode {
	case OpIConst, OpSConst, OpNull, OpLoad:
		return 0, 1
	case OpStore, OpPop, OpIfZero, OpIfNonZero, OpIfNull, OpIfNonNull, OpSwitch, OpThrow, OpRetVal:
		return 1, 0
	case OpDup:
		return 1, 2
	case OpSwap:
		return 2, 2
	case OpAdd, OpSub, OpMul, OpCmp:
		return 2, 1
	case OpIfLt:
		return 2, 0
	case OpCheckCast, OpInstanceOf, OpRecGet:
		return 1, 1
	case OpInvoke:
		sym := u.Symbols[ins.Imm.(InvokeImm).Symbol]
		if sym.Result.Kind != KindVoid {
			return len(sym.Params), 1
		}
		return len(sym.Params), 0
	case OpNewRec:
		return len(u.Records[ins.Imm.(RecordImm).Layout].Fields), 1
	}
	return 0, 0
}

// MaxStack computes the operand stack bound of a decoded body. Handler
// entries start with exactly one value (the thrown error). Differing
// heights at a join and underflow are errors.
func (u *Unit) MaxStack(instrs []Instruction, handlers []Handler) (uint32, error) {
	depth := make([]int, len(instrs))
	for i := range depth {
		depth[i] = -1
	}
	var work []int
	enter := func(pc, d int) error {
		if depth[pc] == -1 {
			depth[pc] = d
			work = append(work, pc)
			return nil
		}
		if depth[pc] != d {
			return fmt.Errorf("instruction %d: stack height %d differs from %d", pc, d, depth[pc])
		}
		return nil
	}

	if err := enter(0, 0); err != nil {
		return 0, err
	}
	for _, h := range handlers {
		if err := enter(int(h.Target), 1); err != nil {
			return 0, err
		}
	}

	bound := 0
	if len(handlers) > 0 {
		bound = 1
	}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]
		ins := instrs[pc]

		pops, pushes := u.StackEffect(ins)
		d := depth[pc] - pops
		if d < 0 {
			return 0, fmt.Errorf("instruction %d: stack underflow", pc)
		}
		d += pushes
		if d > bound {
			bound = d
		}
		for _, t := range ins.Targets() {
			if err := enter(int(t), d); err != nil {
				return 0, err
			}
		}
		if ins.FallsThrough() {
			if pc+1 >= len(instrs) {
				return 0, fmt.Errorf("instruction %d: execution falls off the end", pc)
			}
			if err := enter(pc+1, d); err != nil {
				return 0, err
			}
		}
	}
	return uint32(bound), nil
}
