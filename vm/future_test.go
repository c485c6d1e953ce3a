package vm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFutureComplete(t *testing.T) {
	f := NewFuture()
	require.False(t, f.IsDone())
	require.Equal(t, "Future(pending)", f.String())

	require.True(t, f.Complete("ok"))
	require.False(t, f.Complete("again"), "second completion is ignored")
	require.False(t, f.Fail(errors.New("late")))

	v, ok, err := f.Result()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, `Future("ok")`, f.String())
}

func TestFutureFail(t *testing.T) {
	f := Failed(NewException("IOError", "disk"))
	_, err := f.Join(context.Background())
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	require.Equal(t, "IOError", exc.Class)

	nilErr := NewFuture()
	nilErr.Fail(nil)
	_, _, err = nilErr.Result()
	require.Error(t, err)
}

func TestFutureOnComplete(t *testing.T) {
	f := NewFutureOf("Task")
	require.Equal(t, "Task", f.Class())

	var got []Value
	f.OnComplete(func(v Value, _ error) { got = append(got, v) })
	require.Empty(t, got)

	f.Complete(int64(3))
	require.Equal(t, []Value{int64(3)}, got)

	// Registering after completion runs immediately.
	f.OnComplete(func(v Value, _ error) { got = append(got, v) })
	require.Equal(t, []Value{int64(3), int64(3)}, got)
}

func TestFutureJoinWaits(t *testing.T) {
	f := NewFuture()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		f.Complete("late")
	}()

	v, err := f.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, "late", v)
	wg.Wait()
	<-f.Done()
}

func TestFutureJoinContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFuture().Join(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
