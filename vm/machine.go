package vm

import (
	"context"

	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// Machine is the runtime state of one suspended invocation of a
// transformed function. It is created at the first suspension that
// actually blocks and is passed to every later resumption; invocations
// never share a Machine.
type Machine struct {
	ctx     context.Context
	vm      *VM
	result  *Future
	cont    string
	resumes int
}

// Result returns the future handed to the caller of the transformed
// function.
func (m *Machine) Result() *Future {
	return m.result
}

// machineSuspend implements
// async/Machine.suspend(Machine, Future, State, I, String) Future.
// It registers the resumption callback on the awaited future and returns
// the machine's pending result.
func machineSuspend(env *Env, args []Value) (Value, error) {
	m, _ := args[0].(*Machine)
	awaited, err := futureArg(args, 1)
	if err != nil {
		return nil, err
	}
	rec, _ := args[2].(*Record)
	next, _ := args[3].(int64)
	cont, _ := args[4].(string)

	if m == nil {
		fi, ok := env.vm.index[cont]
		if !ok {
			return nil, errors.NotFound(errors.PhaseRuntime, "continuation", cont)
		}
		class := bytecode.ClassFuture
		if r := env.vm.funcs[fi].fn.Result; r.Kind == bytecode.KindRef {
			class = r.Class
		}
		m = &Machine{
			ctx:    context.WithoutCancel(env.Ctx),
			vm:     env.vm,
			cont:   cont,
			result: NewFutureOf(class),
		}
	}

	awaited.OnComplete(func(Value, error) {
		m.resume(next, rec, awaited)
	})
	return m.result, nil
}

// resume runs the continuation for resumption index next. The value it
// returns is linked to the machine result unless the continuation
// suspended again and returned the result itself.
func (m *Machine) resume(next int64, rec *Record, awaited *Future) {
	m.resumes++
	m.vm.logger.Debug("resuming",
		zap.String("continuation", m.cont),
		zap.Int64("index", next),
		zap.Int("resume", m.resumes))

	v, err := m.vm.Call(m.ctx, m.cont, m, next, rec, awaited)
	if err != nil {
		m.result.Fail(err)
		return
	}
	if f, ok := v.(*Future); ok {
		if f == m.result {
			return
		}
		f.OnComplete(func(v Value, err error) {
			if err != nil {
				m.result.Fail(err)
				return
			}
			m.result.Complete(v)
		})
		return
	}
	m.result.Complete(v)
}
