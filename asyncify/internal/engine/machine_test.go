package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electronicarts/ea-async/bytecode"
)

const handlerFunc = `
  (func $h (param Future) (result Future) (locals 2)
    (catch $try $end $fail)
    sconst "saved"
    store 1
    (label $try)
    load 0
    invoke $await
    pop
    (label $end)
    load 0
    retval
    (label $fail)
    pop
    load 1
    invoke $completed
    retval)`

func plan(t *testing.T, u *bytecode.Unit, name string) *StateMachine {
	t.Helper()
	sm, err := New(Config{}).Plan(u, u.FindFunction(name))
	require.NoError(t, err)
	require.NotNil(t, sm)
	return sm
}

func TestPlan_DeadLocalsAreNotCaptured(t *testing.T) {
	u := parseUnit(t, `
  (func $f (param Future I) (result Future) (locals 4)
    iconst 7
    store 2
    sconst "x"
    store 3
    load 0
    invoke $await
    pop
    load 3
    invoke $completed
    retval)`)

	sm := plan(t, u, "f")
	require.Len(t, sm.Points, 1)
	pt := sm.Points[0]
	require.Equal(t, 5, pt.Instr)
	require.Equal(t, 1, pt.ID)
	require.Equal(t, []uint32{3}, pt.Live)
	require.Equal(t, []bytecode.Type{bytecode.Ref(bytecode.ClassString)}, pt.Fields)
	require.Zero(t, pt.Depth())
	require.Equal(t, [][]int{{0}, {1}}, sm.Segments)
	require.Equal(t, "f$async", sm.Continuation)
}

func TestPlan_OperandStackCapture(t *testing.T) {
	u := parseUnit(t, `
  (func $g (param Future I) (result Future)
    load 1
    load 0
    invoke $await
    pop
    store 1
    load 0
    retval)`)

	sm := plan(t, u, "g")
	pt := sm.Points[0]
	require.Equal(t, []bytecode.Type{bytecode.Int}, pt.Stack)
	// local 0 and the saved I below the future; local 1 is overwritten.
	require.Equal(t, []uint32{0, 2}, pt.Live)
	require.Equal(t, []bytecode.Type{bytecode.Ref(bytecode.ClassFuture), bytecode.Int}, pt.Fields)
}

func TestPlan_DeadStackSlot(t *testing.T) {
	u := parseUnit(t, `
  (func $g (param Future) (result Future)
    sconst "dropped"
    load 0
    invoke $await
    pop
    pop
    load 0
    retval)`)

	pt := plan(t, u, "g").Points[0]
	require.Equal(t, []bytecode.Type{bytecode.Ref(bytecode.ClassString)}, pt.Stack)
	require.Equal(t, []uint32{0}, pt.Live)
}

func TestPlan_HandlerKeepsLocalsLive(t *testing.T) {
	u := parseUnit(t, handlerFunc)

	sm := plan(t, u, "h")
	pt := sm.Points[0]
	require.Equal(t, []uint32{0, 1}, pt.Live)
	require.Equal(t, []bytecode.Type{bytecode.Ref(bytecode.ClassFuture), bytecode.Ref(bytecode.ClassString)}, pt.Fields)
	require.Equal(t, [][]int{{0, 1, 4}, {2, 3, 4}}, sm.Segments)
}

func TestPlan_SegmentPerPoint(t *testing.T) {
	u := parseUnit(t, loopFunc)

	sm := plan(t, u, "loop")
	require.Len(t, sm.Points, 2)
	require.Len(t, sm.Segments, len(sm.Points)+1)
	for p, pt := range sm.Points {
		require.Equal(t, p+1, pt.ID)
		require.NotEmpty(t, sm.Segments[p+1])
	}
}

func TestPlan_UnreachableAwait(t *testing.T) {
	u := parseUnit(t, `
  (func $d (param Future) (result Future) (stack 2)
    load 0
    retval
    load 0
    invoke $await
    retval)`)

	sm, err := New(Config{}).Plan(u, 0)
	require.NoError(t, err)
	require.Empty(t, sm.Points)
}

func TestPlan_NoAwait(t *testing.T) {
	u := parseUnit(t, `
  (func $p (param Future) (result Future)
    load 0
    retval)`)

	sm, err := New(Config{}).Plan(u, 0)
	require.NoError(t, err)
	require.Nil(t, sm)
}

func TestPlan_CustomMatcher(t *testing.T) {
	u := parseUnit(t, `
  (import $get my/Tasks get (param Future) (result String))
  (func $p (param Future) (result Future)
    load 0
    invoke $get
    invoke $completed
    retval)`)

	sm, err := New(Config{}).Plan(u, 0)
	require.NoError(t, err)
	require.Nil(t, sm)

	sm, err = New(Config{Matcher: ownerMatcher("my/Tasks")}).Plan(u, 0)
	require.NoError(t, err)
	require.Len(t, sm.Points, 1)
	require.Equal(t, bytecode.Ref(bytecode.ClassString), sm.Points[0].Await.Result)
}

type ownerMatcher string

func (m ownerMatcher) Match(owner, _ string) bool { return owner == string(m) }
