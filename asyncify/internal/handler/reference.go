package handler

import (
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// InvokeHandler checks call arguments against the symbol's parameters and
// pushes its result. Arguments are popped last first.
type InvokeHandler struct{}

func (h InvokeHandler) Handle(ctx *Context, instr bytecode.Instruction) error {
	sym := ctx.Unit.Symbols[instr.Imm.(bytecode.InvokeImm).Symbol]
	for i := len(sym.Params) - 1; i >= 0; i-- {
		if err := ctx.PopAs(sym.Params[i]); err != nil {
			return err
		}
	}
	if sym.Result.Kind != bytecode.KindVoid {
		ctx.Push(sym.Result)
	}
	return nil
}

// CheckCastHandler narrows a reference. A null stays assignable to the
// target class, so it resolves to it.
type CheckCastHandler struct{}

func (h CheckCastHandler) Handle(ctx *Context, instr bytecode.Instruction) error {
	class := ctx.Unit.Strings[instr.Imm.(bytecode.ClassImm).Class]
	target := bytecode.Ref(class)
	slot := len(ctx.Frame.Stack) - 1
	t, err := ctx.PopRef()
	if err != nil {
		return err
	}
	if t.Kind == bytecode.KindNull {
		ctx.Resolved = append(ctx.Resolved, Resolution{Instr: ctx.Instr, Slot: slot, Type: target})
	}
	ctx.Push(target)
	return nil
}

// InstanceOfHandler tests a reference and pushes an I.
type InstanceOfHandler struct{}

func (h InstanceOfHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	if _, err := ctx.PopRef(); err != nil {
		return err
	}
	ctx.Push(bytecode.Int)
	return nil
}

// ThrowHandler consumes an Error reference.
type ThrowHandler struct{}

func (h ThrowHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	return ctx.PopAs(bytecode.Ref(bytecode.ClassError))
}

// ReturnHandler checks that a bare return matches a void function.
type ReturnHandler struct{}

func (h ReturnHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	if ctx.Result.Kind != bytecode.KindVoid {
		return ctx.mismatch(ctx.Result, bytecode.Void)
	}
	return nil
}

// RetValHandler checks the returned value against the function result.
type RetValHandler struct{}

func (h RetValHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	if ctx.Result.Kind == bytecode.KindVoid {
		return ctx.fault(errors.KindTypeMismatch, "retval in a void function")
	}
	return ctx.PopAs(ctx.Result)
}

// NewRecHandler consumes the layout's fields, first field deepest, and
// pushes a State reference.
type NewRecHandler struct{}

func (h NewRecHandler) Handle(ctx *Context, instr bytecode.Instruction) error {
	layout := ctx.Unit.Records[instr.Imm.(bytecode.RecordImm).Layout]
	for i := len(layout.Fields) - 1; i >= 0; i-- {
		if err := ctx.PopAs(layout.Fields[i]); err != nil {
			return err
		}
	}
	ctx.Push(bytecode.Ref(bytecode.ClassState))
	return nil
}

// RecGetHandler reads one field of a State record.
type RecGetHandler struct{}

func (h RecGetHandler) Handle(ctx *Context, instr bytecode.Instruction) error {
	imm := instr.Imm.(bytecode.FieldImm)
	if err := ctx.PopAs(bytecode.Ref(bytecode.ClassState)); err != nil {
		return err
	}
	ctx.Push(ctx.Unit.Records[imm.Layout].Fields[imm.Field])
	return nil
}

// RegisterReferenceHandlers registers call, cast, return and record
// handlers.
func RegisterReferenceHandlers(r *Registry) {
	r.Register(bytecode.OpInvoke, InvokeHandler{})
	r.Register(bytecode.OpCheckCast, CheckCastHandler{})
	r.Register(bytecode.OpInstanceOf, InstanceOfHandler{})
	r.Register(bytecode.OpThrow, ThrowHandler{})
	r.Register(bytecode.OpReturn, ReturnHandler{})
	r.Register(bytecode.OpRetVal, RetValHandler{})
	r.Register(bytecode.OpNewRec, NewRecHandler{})
	r.Register(bytecode.OpRecGet, RecGetHandler{})
}
