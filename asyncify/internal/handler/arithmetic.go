package handler

import "github.com/electronicarts/ea-async/bytecode"

// BinaryIntHandler handles I I -> I operations.
type BinaryIntHandler struct{}

func (h BinaryIntHandler) Handle(ctx *Context, _ bytecode.Instruction) error {
	if err := ctx.PopInt(); err != nil {
		return err
	}
	if err := ctx.PopInt(); err != nil {
		return err
	}
	ctx.Push(bytecode.Int)
	return nil
}

// RegisterArithmeticHandlers registers integer arithmetic handlers.
func RegisterArithmeticHandlers(r *Registry) {
	r.RegisterBulk([]byte{
		bytecode.OpAdd,
		bytecode.OpSub,
		bytecode.OpMul,
		bytecode.OpCmp,
	}, BinaryIntHandler{})
}
