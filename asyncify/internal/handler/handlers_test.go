package handler

import (
	"errors"
	"testing"

	"github.com/electronicarts/ea-async/bytecode"
	aerrors "github.com/electronicarts/ea-async/errors"
)

func testUnit() *bytecode.Unit {
	u := &bytecode.Unit{
		Classes: []bytecode.Class{
			{Name: "Task", Super: bytecode.ClassFuture},
			{Name: "IOError", Super: bytecode.ClassError},
		},
	}
	u.AddSymbol(bytecode.Symbol{
		Owner:  "String",
		Name:   "length",
		Params: []bytecode.Type{bytecode.Ref(bytecode.ClassString)},
		Result: bytecode.Int,
	})
	u.AddString("Task")
	u.AddRecord(bytecode.RecordLayout{Function: "f", Point: 1, Fields: []bytecode.Type{bytecode.Int, bytecode.Ref(bytecode.ClassString)}})
	return u
}

func newContext(u *bytecode.Unit, locals int, stack ...bytecode.Type) *Context {
	l := make([]bytecode.Type, locals)
	for i := range l {
		l[i] = bytecode.Top
	}
	return &Context{
		Unit:     u,
		Classes:  bytecode.NewHierarchy(u, nil),
		Frame:    &Frame{Locals: l, Stack: append([]bytecode.Type(nil), stack...)},
		Result:   bytecode.Ref("Task"),
		Function: "f",
	}
}

func run(t *testing.T, ctx *Context, instrs ...bytecode.Instruction) error {
	t.Helper()
	r := Default()
	for i, ins := range instrs {
		ctx.Instr = i
		if err := r.Get(ins.Opcode).Handle(ctx, ins); err != nil {
			return err
		}
	}
	return nil
}

func stackEquals(t *testing.T, ctx *Context, want ...bytecode.Type) {
	t.Helper()
	got := ctx.Frame.Stack
	if len(got) != len(want) {
		t.Fatalf("stack = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stack[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConstantsAndLocals(t *testing.T) {
	ctx := newContext(testUnit(), 2)
	err := run(t, ctx,
		bytecode.Instruction{Opcode: bytecode.OpIConst, Imm: bytecode.ConstImm{Value: 1}},
		bytecode.Instruction{Opcode: bytecode.OpStore, Imm: bytecode.LocalImm{Local: 0}},
		bytecode.Instruction{Opcode: bytecode.OpNull},
		bytecode.Instruction{Opcode: bytecode.OpStore, Imm: bytecode.LocalImm{Local: 1}},
		bytecode.Instruction{Opcode: bytecode.OpLoad, Imm: bytecode.LocalImm{Local: 0}},
		bytecode.Instruction{Opcode: bytecode.OpSConst, Imm: bytecode.StringImm{Index: 0}},
	)
	if err != nil {
		t.Fatal(err)
	}
	stackEquals(t, ctx, bytecode.Int, bytecode.Ref(bytecode.ClassString))
	if ctx.Frame.Locals[1] != bytecode.Null {
		t.Errorf("stored null must stay deferred, got %v", ctx.Frame.Locals[1])
	}
}

func TestLoadUnusableLocal(t *testing.T) {
	ctx := newContext(testUnit(), 1)
	err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpLoad, Imm: bytecode.LocalImm{Local: 0}})
	if !errors.Is(err, &aerrors.Error{Phase: aerrors.PhaseAnalyze, Kind: aerrors.KindTypeMismatch}) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestStackOps(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Int, bytecode.Ref(bytecode.ClassString))
	err := run(t, ctx,
		bytecode.Instruction{Opcode: bytecode.OpSwap},
		bytecode.Instruction{Opcode: bytecode.OpDup},
	)
	if err != nil {
		t.Fatal(err)
	}
	stackEquals(t, ctx, bytecode.Ref(bytecode.ClassString), bytecode.Int, bytecode.Int)

	if err := run(t, newContext(testUnit(), 0), bytecode.Instruction{Opcode: bytecode.OpPop}); !errors.Is(err, &aerrors.Error{Kind: aerrors.KindStackUnderflow}) {
		t.Errorf("pop on empty stack: got %v", err)
	}
}

func TestArithmeticRejectsReferences(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Int, bytecode.Ref(bytecode.ClassString))
	err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpAdd})
	if !errors.Is(err, &aerrors.Error{Kind: aerrors.KindTypeMismatch}) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestInvokeResolvesDeferredNull(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Int, bytecode.Null)
	err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpInvoke, Imm: bytecode.InvokeImm{Symbol: 0}})
	if err != nil {
		t.Fatal(err)
	}
	stackEquals(t, ctx, bytecode.Int, bytecode.Int)

	if len(ctx.Resolved) != 1 {
		t.Fatalf("resolutions = %v", ctx.Resolved)
	}
	r := ctx.Resolved[0]
	if r.Slot != 1 || r.Instr != 0 || r.Type != bytecode.Ref(bytecode.ClassString) {
		t.Errorf("unexpected resolution %+v", r)
	}
}

func TestCheckCast(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Ref(bytecode.ClassFuture))
	// string 0 is "Task"
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpCheckCast, Imm: bytecode.ClassImm{Class: 0}}); err != nil {
		t.Fatal(err)
	}
	stackEquals(t, ctx, bytecode.Ref("Task"))

	ctx = newContext(testUnit(), 0, bytecode.Int)
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpCheckCast, Imm: bytecode.ClassImm{Class: 0}}); err == nil {
		t.Error("checkcast of I must fail")
	}
}

func TestReturns(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Ref("Task"))
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpRetVal}); err != nil {
		t.Errorf("Task returned as Task: %v", err)
	}

	ctx = newContext(testUnit(), 0, bytecode.Ref(bytecode.ClassFuture))
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpRetVal}); err == nil {
		t.Error("Future is not assignable to Task")
	}

	ctx = newContext(testUnit(), 0)
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpReturn}); err == nil {
		t.Error("bare return in a function returning Task")
	}
}

func TestRecords(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Int, bytecode.Null)
	err := run(t, ctx,
		bytecode.Instruction{Opcode: bytecode.OpNewRec, Imm: bytecode.RecordImm{Layout: 0}},
		bytecode.Instruction{Opcode: bytecode.OpRecGet, Imm: bytecode.FieldImm{Layout: 0, Field: 1}},
	)
	if err != nil {
		t.Fatal(err)
	}
	stackEquals(t, ctx, bytecode.Ref(bytecode.ClassString))

	ctx = newContext(testUnit(), 0, bytecode.Ref(bytecode.ClassString), bytecode.Int)
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpNewRec, Imm: bytecode.RecordImm{Layout: 0}}); err == nil {
		t.Error("fields in the wrong order must fail")
	}
}

func TestThrowNeedsError(t *testing.T) {
	ctx := newContext(testUnit(), 0, bytecode.Ref("IOError"))
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpThrow}); err != nil {
		t.Errorf("throw IOError: %v", err)
	}
	ctx = newContext(testUnit(), 0, bytecode.Ref(bytecode.ClassString))
	if err := run(t, ctx, bytecode.Instruction{Opcode: bytecode.OpThrow}); err == nil {
		t.Error("throw String must fail")
	}
}

func TestAssignable(t *testing.T) {
	h := bytecode.NewHierarchy(testUnit(), nil)
	tests := []struct {
		from, to bytecode.Type
		want     bool
	}{
		{bytecode.Null, bytecode.Ref(bytecode.ClassString), true},
		{bytecode.Ref("Task"), bytecode.Ref(bytecode.ClassFuture), true},
		{bytecode.Ref(bytecode.ClassFuture), bytecode.Ref("Task"), false},
		{bytecode.Int, bytecode.Ref(bytecode.ClassObject), false},
		{bytecode.Top, bytecode.Int, false},
		{bytecode.Null, bytecode.Null, true},
	}
	for _, tt := range tests {
		if got := Assignable(h, tt.from, tt.to); got != tt.want {
			t.Errorf("Assignable(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
