package vm

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// FallbackWarning is logged when await runs in a function that was not
// transformed.
const FallbackWarning = "Warning: Illegal call to await, the method invoking await must return a Future"

// Native implements a symbol outside the unit. Returned *Exception errors
// are thrown into the calling function; other errors are converted to
// exceptions of class Error, except runtime faults and context errors,
// which abort the call.
type Native func(env *Env, args []Value) (Value, error)

// builtins are the natives every VM provides, keyed by Symbol.Key.
var builtins = map[string]Native{
	"Future.isDone":         futureIsDone,
	"Future.join":           futureJoin,
	"Future.completed":      futureCompleted,
	"Future.failed":         futureFailed,
	"Future.new":            futureNew,
	"async/Await.await":     awaitFallback,
	"async/Machine.suspend": machineSuspend,
	"Error.new":             errorNew,
	"Error.message":         errorMessage,
	"String.concat":         stringConcat,
	"String.valueOf":        stringValueOf,
	"String.length":         stringLength,
	"String.equals":         stringEquals,
	"Object.identity":       objectIdentity,
}

func futureArg(args []Value, i int) (*Future, error) {
	f, ok := args[i].(*Future)
	if !ok {
		if args[i] == nil {
			return nil, NewException(bytecode.ClassError, "null future")
		}
		return nil, errors.TypeMismatch(errors.PhaseRuntime, "", -1, bytecode.ClassFuture, ClassOf(args[i]))
	}
	return f, nil
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func futureIsDone(_ *Env, args []Value) (Value, error) {
	f, err := futureArg(args, 0)
	if err != nil {
		return nil, err
	}
	return boolValue(f.IsDone()), nil
}

// futureJoin returns the value or throws the failure. It blocks only if
// the future is still pending.
func futureJoin(env *Env, args []Value) (Value, error) {
	f, err := futureArg(args, 0)
	if err != nil {
		return nil, err
	}
	v, err := f.Join(env.Ctx)
	if err != nil {
		if env.Ctx.Err() != nil {
			return nil, err
		}
		return nil, asException(err)
	}
	return v, nil
}

func futureCompleted(_ *Env, args []Value) (Value, error) {
	return Completed(args[0]), nil
}

func futureFailed(_ *Env, args []Value) (Value, error) {
	exc, ok := args[0].(*Exception)
	if !ok {
		return nil, NewException(bytecode.ClassError, "Future.failed needs an Error")
	}
	return Failed(exc), nil
}

func futureNew(_ *Env, _ []Value) (Value, error) {
	return NewFuture(), nil
}

// awaitFallback is the untransformed await: warn on every call, then
// block. The Go stack is attached when debug logging is on.
func awaitFallback(env *Env, args []Value) (Value, error) {
	fields := []zap.Field{
		zap.String("function", env.Function),
		zap.Int("instr", env.Instr),
	}
	if env.vm.logger.Core().Enabled(zap.DebugLevel) {
		fields = append(fields, zap.Stack("stack"))
	}
	env.vm.logger.Warn(FallbackWarning, fields...)
	return futureJoin(env, args)
}

func errorNew(_ *Env, args []Value) (Value, error) {
	msg, _ := args[0].(string)
	return NewException(bytecode.ClassError, msg), nil
}

func errorMessage(_ *Env, args []Value) (Value, error) {
	exc, ok := args[0].(*Exception)
	if !ok {
		return nil, NewException(bytecode.ClassError, "message of non-error")
	}
	return exc.Message, nil
}

func stringConcat(_ *Env, args []Value) (Value, error) {
	a, _ := args[0].(string)
	b, _ := args[1].(string)
	return a + b, nil
}

func stringValueOf(_ *Env, args []Value) (Value, error) {
	n, _ := args[0].(int64)
	return strconv.FormatInt(n, 10), nil
}

func stringLength(_ *Env, args []Value) (Value, error) {
	s, _ := args[0].(string)
	return int64(len(s)), nil
}

func stringEquals(_ *Env, args []Value) (Value, error) {
	a, aok := args[0].(string)
	b, bok := args[1].(string)
	return boolValue(aok == bok && a == b), nil
}

func objectIdentity(_ *Env, args []Value) (Value, error) {
	return args[0], nil
}
