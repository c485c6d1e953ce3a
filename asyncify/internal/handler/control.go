package handler

import "github.com/electronicarts/ea-async/bytecode"

// IntBranchHandler consumes the I tested by ifzero, ifnonzero and switch.
// Successor frames are propagated by the analyzer, not here.
type IntBranchHandler struct{}

func (h IntBranchHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	return ctx.PopInt()
}

// CompareBranchHandler consumes the two operands of iflt.
type CompareBranchHandler struct{}

func (h CompareBranchHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	if err := ctx.PopInt(); err != nil {
		return err
	}
	return ctx.PopInt()
}

// NullBranchHandler consumes the reference tested by ifnull and ifnonnull.
type NullBranchHandler struct{}

func (h NullBranchHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	_, err := ctx.PopRef()
	return err
}

// RegisterControlHandlers registers branch handlers.
func RegisterControlHandlers(r *Registry) {
	r.Register(bytecode.OpGoto, NopHandler{})
	r.RegisterBulk([]byte{bytecode.OpIfZero, bytecode.OpIfNonZero, bytecode.OpSwitch}, IntBranchHandler{})
	r.Register(bytecode.OpIfLt, CompareBranchHandler{})
	r.RegisterBulk([]byte{bytecode.OpIfNull, bytecode.OpIfNonNull}, NullBranchHandler{})
}
