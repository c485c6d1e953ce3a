package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/electronicarts/ea-async/asm"
	"github.com/electronicarts/ea-async/errors"
)

const basics = `
(unit
  (class IOError Error)
  (import $errNew Error new (param String) (result Error))
  (import $msg Error message (param Error) (result String))
  (import $concat String concat (param String String) (result String))
  (import $valueOf String valueOf (param I) (result String))

  (func $fact (param I) (result I) (locals 2)
    iconst 1
    store 1
    (label $loop)
    load 0
    iconst 1
    iflt $done
    load 1
    load 0
    mul
    store 1
    load 0
    iconst 1
    sub
    store 0
    goto $loop
    (label $done)
    load 1
    retval)

  (func $pick (param I) (result String)
    load 0
    switch 1 ($one $two) $other
    (label $one)
    sconst "one"
    retval
    (label $two)
    sconst "two"
    retval
    (label $other)
    load 0
    invoke $valueOf
    retval)

  (func $compare (param I I) (result I)
    load 0
    load 1
    cmp
    retval)

  (func $safe (result String)
    (catch $try $end $fail)
    (label $try)
    sconst "boom"
    invoke $errNew
    throw
    (label $end)
    (label $fail)
    invoke $msg
    sconst "caught "
    swap
    invoke $concat
    retval)

  (func $narrow (result String)
    (catch $try $end $fail IOError)
    (label $try)
    sconst "plain"
    invoke $errNew
    throw
    (label $end)
    (label $fail)
    pop
    sconst "unreachable"
    retval)

  (func $cast (param Object) (result String)
    load 0
    checkcast String
    retval)

  (func $isString (param Object) (result I)
    load 0
    instanceof String
    retval)

  (func $callee (param I) (result I)
    load 0
    invoke $fact
    iconst 1
    add
    retval)

  (func $forever (param I) (result I)
    load 0
    invoke $forever
    retval))
`

func load(t *testing.T, src string, opts ...Option) *VM {
	t.Helper()
	u, err := asm.Parse(src)
	require.NoError(t, err)
	v, err := New(u, opts...)
	require.NoError(t, err)
	return v
}

func TestArithmeticAndBranches(t *testing.T) {
	v := load(t, basics)
	ctx := context.Background()

	got, err := v.Call(ctx, "fact", 5)
	require.NoError(t, err)
	require.Equal(t, int64(120), got)

	got, err = v.Call(ctx, "callee", 3)
	require.NoError(t, err)
	require.Equal(t, int64(7), got)

	for _, tt := range []struct {
		a, b int
		want int64
	}{{1, 2, -1}, {2, 2, 0}, {3, 2, 1}} {
		got, err := v.Call(ctx, "compare", tt.a, tt.b)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestSwitch(t *testing.T) {
	v := load(t, basics)
	ctx := context.Background()

	for in, want := range map[int]string{1: "one", 2: "two", 0: "0", 9: "9"} {
		got, err := v.Call(ctx, "pick", in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestExceptions(t *testing.T) {
	v := load(t, basics)
	ctx := context.Background()

	got, err := v.Call(ctx, "safe")
	require.NoError(t, err)
	require.Equal(t, "caught boom", got)

	// A handler for IOError does not catch a plain Error.
	_, err = v.Call(ctx, "narrow")
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	require.Equal(t, "Error", exc.Class)
	require.Equal(t, "plain", exc.Message)
}

func TestCasts(t *testing.T) {
	v := load(t, basics)
	ctx := context.Background()

	got, err := v.Call(ctx, "cast", "text")
	require.NoError(t, err)
	require.Equal(t, "text", got)

	got, err = v.Call(ctx, "cast", nil)
	require.NoError(t, err, "null passes every cast")
	require.Nil(t, got)

	_, err = v.Call(ctx, "cast", NewFuture())
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	require.Contains(t, exc.Message, "cannot cast Future to String")

	got, err = v.Call(ctx, "isString", "x")
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
	got, err = v.Call(ctx, "isString", nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestCallErrors(t *testing.T) {
	v := load(t, basics, WithMaxDepth(16))
	ctx := context.Background()

	_, err := v.Call(ctx, "missing")
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindNotFound})

	_, err = v.Call(ctx, "fact")
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindInvalidInput})

	_, err = v.Call(ctx, "forever", 1)
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindOutOfBounds})
	require.ErrorContains(t, err, "call depth 16 exceeded")
}

func TestUnresolvedSymbol(t *testing.T) {
	v := load(t, `
(unit
  (import $open Resource open (result Object))
  (func $f (result Object)
    invoke $open
    retval))`)

	_, err := v.Call(context.Background(), "f")
	require.ErrorIs(t, err, &errors.Error{Kind: errors.KindNotFound})
	require.ErrorContains(t, err, "unresolved symbol Resource.open")
}

func TestWithNative(t *testing.T) {
	opened := 0
	v := load(t, `
(unit
  (import $open Resource open (result Object))
  (func $f (result Object)
    invoke $open
    retval))`,
		WithNative("Resource.open", func(_ *Env, _ []Value) (Value, error) {
			opened++
			return NewObject("Resource"), nil
		}))

	got, err := v.Call(context.Background(), "f")
	require.NoError(t, err)
	require.Equal(t, "Resource", ClassOf(got))
	require.Equal(t, 1, opened)
}

const blocking = `
(unit
  (import $await async/Await await (param Future) (result Object))
  (func $wait (param Future) (result Object)
    load 0
    invoke $await
    retval))
`

func TestAwaitFallbackWarnsEveryCall(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	v := load(t, blocking, WithLogger(zap.New(core)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := v.Call(ctx, "wait", Completed("v"))
		require.NoError(t, err)
		require.Equal(t, "v", got)
	}

	entries := logs.FilterMessage(FallbackWarning).All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.Equal(t, "wait", e.ContextMap()["function"])
		require.NotContains(t, e.ContextMap(), "stack")
	}
}

func TestAwaitFallbackStackAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	v := load(t, blocking, WithLogger(zap.New(core)))

	_, err := v.Call(context.Background(), "wait", Completed("v"))
	require.NoError(t, err)

	entries := logs.FilterMessage(FallbackWarning).All()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].ContextMap(), "stack")
}

func TestAwaitFallbackRespectsContext(t *testing.T) {
	v := load(t, blocking)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Call(ctx, "wait", NewFuture())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitFallbackThrowsFailure(t *testing.T) {
	v := load(t, blocking)
	_, err := v.Call(context.Background(), "wait", Failed(NewException("IOError", "gone")))
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	require.Equal(t, "IOError", exc.Class)
}

// suspending is a hand-written transformed function: a fast path that
// joins a completed future and a slow path that captures the prefix and
// suspends into twice$async.
const suspending = `
(unit
  (class Task Future)
  (import $isDone Future isDone (param Future) (result I))
  (import $join Future join (param Future) (result Object))
  (import $suspend async/Machine suspend (param async/Machine Future async/State I String) (result Future))
  (import $completed Future completed (param Object) (result Future))
  (import $concat String concat (param String String) (result String))
  (import $errNew Error new (param String) (result Error))
  (record twice 1 (fields String))

  (func $twice (param Future String) (result Future) (flags transformed)
    load 0
    dup
    invoke $isDone
    ifzero $slow
    invoke $join
    checkcast String
    load 1
    swap
    invoke $concat
    invoke $completed
    retval
    (label $slow)
    store 2
    null
    load 2
    load 1
    newrec 0
    iconst 1
    sconst "twice$async"
    invoke $suspend
    retval)

  (func $twice$async (param async/Machine I async/State Future) (result Task) (flags continuation)
    load 1
    switch 1 ($r1) $bad
    (label $r1)
    load 3
    invoke $join
    checkcast String
    load 2
    recget 0 0
    swap
    invoke $concat
    invoke $completed
    retval
    (label $bad)
    sconst "bad resume index"
    invoke $errNew
    throw))
`

func TestMachineFastPath(t *testing.T) {
	v := load(t, suspending)
	got, err := v.Call(context.Background(), "twice", Completed("world"), "hello ")
	require.NoError(t, err)

	f, ok := got.(*Future)
	require.True(t, ok)
	out, err := f.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestMachineSuspendAndResume(t *testing.T) {
	v := load(t, suspending)
	ctx := context.Background()

	awaited := NewFuture()
	got, err := v.Call(ctx, "twice", awaited, "hello ")
	require.NoError(t, err)

	res, ok := got.(*Future)
	require.True(t, ok)
	require.False(t, res.IsDone())
	require.Equal(t, "Task", res.Class(), "result future takes the continuation's result class")

	awaited.Complete("world")
	out, err := res.Join(ctx)
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestMachineLogsResumes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	v := load(t, suspending, WithLogger(zap.New(core)))
	ctx := context.Background()

	awaited := NewFuture()
	got, err := v.Call(ctx, "twice", awaited, "a")
	require.NoError(t, err)
	awaited.Complete("b")
	_, err = got.(*Future).Join(ctx)
	require.NoError(t, err)

	entries := logs.FilterMessage("resuming").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(1), entries[0].ContextMap()["resume"])
	require.Equal(t, int64(1), entries[0].ContextMap()["index"])
}

func TestMachineResumeFailure(t *testing.T) {
	v := load(t, suspending)
	ctx := context.Background()

	awaited := NewFuture()
	got, err := v.Call(ctx, "twice", awaited, "x")
	require.NoError(t, err)

	awaited.Fail(NewException("IOError", "lost"))
	_, err = got.(*Future).Join(ctx)
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	require.Equal(t, "IOError", exc.Class)
}

func TestRuntimeFault(t *testing.T) {
	v := load(t, `(unit (func $f (result I) (stack 1) add retval))`)
	_, err := v.Call(context.Background(), "f")
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindStackUnderflow})
}
