package handler

import (
	"testing"

	"github.com/electronicarts/ea-async/bytecode"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	called := false
	h := Func(func(ctx *Context, instr bytecode.Instruction) error {
		called = true
		return nil
	})

	r.Register(bytecode.OpNop, h)

	if r.Get(bytecode.OpThrow) != nil {
		t.Error("Get should return nil for unregistered opcode")
	}

	got := r.Get(bytecode.OpNop)
	if got == nil {
		t.Fatal("Get should return handler for registered opcode")
	}
	_ = got.Handle(&Context{}, bytecode.Instruction{Opcode: bytecode.OpNop})

	if !called {
		t.Error("handler should have been called")
	}
}

func TestRegistry_RegisterBulk(t *testing.T) {
	r := NewRegistry()
	ops := []byte{bytecode.OpAdd, bytecode.OpSub}
	r.RegisterBulk(ops, BinaryIntHandler{})

	for _, op := range ops {
		if _, ok := r.Get(op).(BinaryIntHandler); !ok {
			t.Errorf("opcode 0x%02x: handler %T", op, r.Get(op))
		}
	}
	if missing := r.MissingHandlers([]byte{bytecode.OpAdd, bytecode.OpMul}); len(missing) != 1 || missing[0] != bytecode.OpMul {
		t.Errorf("MissingHandlers = %v, want [mul]", missing)
	}
}

func TestDefaultCoversInstructionSet(t *testing.T) {
	if missing := Default().MissingHandlers(bytecode.Opcodes()); len(missing) != 0 {
		for _, op := range missing {
			t.Errorf("no handler for %s", bytecode.OpcodeName(op))
		}
	}
}
