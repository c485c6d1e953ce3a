package handler

import "github.com/electronicarts/ea-async/bytecode"

// IConstHandler pushes an I.
type IConstHandler struct{}

func (h IConstHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	ctx.Push(bytecode.Int)
	return nil
}

// SConstHandler pushes a String reference.
type SConstHandler struct{}

func (h SConstHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	ctx.Push(bytecode.Ref(bytecode.ClassString))
	return nil
}

// NullHandler pushes a deferred null. Its reference class is not known
// until the value reaches a typed use, where PopAs records the resolution.
type NullHandler struct{}

func (h NullHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	ctx.Push(bytecode.Null)
	return nil
}

// RegisterConstantHandlers registers constant handlers.
func RegisterConstantHandlers(r *Registry) {
	r.Register(bytecode.OpIConst, IConstHandler{})
	r.Register(bytecode.OpSConst, SConstHandler{})
	r.Register(bytecode.OpNull, NullHandler{})
}
