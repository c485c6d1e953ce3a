package handler

import "github.com/electronicarts/ea-async/bytecode"

// LoadHandler pushes the type of a local. Reading a local that was never
// written, or whose paths disagree on its type (Top), is an error.
type LoadHandler struct{}

func (h LoadHandler) Handle(ctx *Context, instr bytecode.Instruction) error {
	t, err := ctx.Local(instr.Imm.(bytecode.LocalImm).Local)
	if err != nil {
		return err
	}
	ctx.Push(t)
	return nil
}

// StoreHandler moves the top of stack into a local. A stored null stays
// deferred: the local keeps kind Null until a typed use or a join with a
// reference widens it.
type StoreHandler struct{}

func (h StoreHandler) Handle(ctx *Context, instr bytecode.Instruction) error {
	t, err := ctx.Pop()
	if err != nil {
		return err
	}
	return ctx.SetLocal(instr.Imm.(bytecode.LocalImm).Local, t)
}

// RegisterVariableHandlers registers local variable handlers.
func RegisterVariableHandlers(r *Registry) {
	r.Register(bytecode.OpLoad, LoadHandler{})
	r.Register(bytecode.OpStore, StoreHandler{})
}
