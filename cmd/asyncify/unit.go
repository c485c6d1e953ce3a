package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/electronicarts/ea-async/asm"
	"github.com/electronicarts/ea-async/asyncify"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/vm"
)

// readUnit returns the encoded unit at path. Files with a text extension
// are assembled first.
func readUnit(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".s", ".asm":
		return asm.Compile(string(data))
	}
	return data, nil
}

// transformed runs the transform for display or execution. An unchanged
// unit is returned as is.
func transformed(data []byte, cfg TransformConfig, loader bytecode.ClassResolver, sink asyncify.ErrorSink) ([]byte, error) {
	out, err := asyncify.Transform(loader, data, sink, cfg.options()...)
	if errors.Is(err, asyncify.ErrUnchanged) {
		return data, nil
	}
	return out, err
}

// parseArg converts command line text to a value for a parameter of type
// t. Future parameters receive an already completed future.
func parseArg(t bytecode.Type, s string, classes *bytecode.Hierarchy) (vm.Value, error) {
	if t.Kind == bytecode.KindInt {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		return n, nil
	}
	if s == "null" {
		return nil, nil
	}
	if t.Kind == bytecode.KindRef && classes.IsSubclass(t.Class, bytecode.ClassFuture) {
		inner, ok := strings.CutPrefix(s, "failed:")
		if ok {
			return vm.Failed(vm.NewException(bytecode.ClassError, inner)), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return vm.Completed(n), nil
		}
		return vm.Completed(s), nil
	}
	return s, nil
}

// callFunction invokes name and waits up to timeout for a future result.
func callFunction(ctx context.Context, machine *vm.VM, name string, raw []string, timeout time.Duration) (string, error) {
	idx := machine.Unit().FindFunction(name)
	if idx < 0 {
		return "", fmt.Errorf("function %q not found", name)
	}
	fn := &machine.Unit().Functions[idx]
	if len(raw) != len(fn.Params) {
		return "", fmt.Errorf("%s takes %d argument(s), got %d", name, len(fn.Params), len(raw))
	}
	args := make([]vm.Value, len(raw))
	for i, s := range raw {
		v, err := parseArg(fn.Params[i], s, machine.Classes())
		if err != nil {
			return "", err
		}
		args[i] = v
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := machine.Call(ctx, name, args...)
	if err != nil {
		return "", err
	}
	f, ok := v.(*vm.Future)
	if !ok {
		return vm.Format(v), nil
	}
	pending := !f.IsDone()
	res, err := f.Join(ctx)
	if err != nil {
		return "", err
	}
	if pending {
		return "completed later: " + vm.Format(res), nil
	}
	return vm.Format(res), nil
}

// signature renders a function header for listings.
func signature(fn *bytecode.Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.String()
	}
	s := fn.Name + "(" + strings.Join(params, ", ") + ")"
	if fn.Result.Kind != bytecode.KindVoid {
		s += " -> " + fn.Result.String()
	}
	return s
}
