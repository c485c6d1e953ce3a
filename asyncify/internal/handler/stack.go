package handler

import "github.com/electronicarts/ea-async/bytecode"

// NopHandler leaves the frame unchanged.
type NopHandler struct{}

func (h NopHandler) Handle(*Context, bytecode.Instruction) error {
	return nil
}

// PopHandler discards the top of stack.
type PopHandler struct{}

func (h PopHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	_, err := ctx.Pop()
	return err
}

// DupHandler duplicates the top of stack.
type DupHandler struct{}

func (h DupHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	t, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Push(t)
	ctx.Push(t)
	return nil
}

// SwapHandler exchanges the two top stack slots.
type SwapHandler struct{}

func (h SwapHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	b, err := ctx.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Pop()
	if err != nil {
		return err
	}
	ctx.Push(b)
	ctx.Push(a)
	return nil
}

// RegisterStackHandlers registers operand stack handlers.
func RegisterStackHandlers(r *Registry) {
	r.Register(bytecode.OpNop, NopHandler{})
	r.Register(bytecode.OpPop, PopHandler{})
	r.Register(bytecode.OpDup, DupHandler{})
	r.Register(bytecode.OpSwap, SwapHandler{})
}
