package vm

import (
	"errors"
	"fmt"

	"github.com/electronicarts/ea-async/bytecode"
)

// Value is a runtime value: int64, string, nil, *Future, *Exception,
// *Record, *Machine or *Object.
type Value = any

// Object is an instance of a user class, created by natives.
type Object struct {
	Fields map[string]Value
	Class  string
}

// NewObject creates an object of class.
func NewObject(class string) *Object {
	return &Object{Class: class, Fields: make(map[string]Value)}
}

// Record is a captured-state record built by newrec.
type Record struct {
	Fields []Value
	Layout uint32
}

// Exception is a thrown error value. Class is Error or a subclass.
type Exception struct {
	Cause   error
	Class   string
	Message string
}

// NewException creates an exception of class with message.
func NewException(class, message string) *Exception {
	return &Exception{Class: class, Message: message}
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Class
	}
	return e.Class + ": " + e.Message
}

func (e *Exception) Unwrap() error {
	return e.Cause
}

// asException converts a Go error into a throwable exception.
func asException(err error) *Exception {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	return &Exception{Class: bytecode.ClassError, Message: err.Error(), Cause: err}
}

// ClassOf returns the runtime class of a reference value, "" for nil and ints.
func ClassOf(v Value) string {
	switch x := v.(type) {
	case string:
		return bytecode.ClassString
	case *Future:
		return x.Class()
	case *Exception:
		return x.Class
	case *Record:
		return bytecode.ClassState
	case *Machine:
		return bytecode.ClassMachine
	case *Object:
		return x.Class
	}
	return ""
}

// Format renders a value for diagnostics and the interactive browser.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case *Future:
		return x.String()
	case *Exception:
		return x.Error()
	case *Record:
		return fmt.Sprintf("record#%d%v", x.Layout, x.Fields)
	case *Machine:
		return "machine(" + x.cont + ")"
	case *Object:
		return x.Class + "@" + fmt.Sprintf("%p", x)
	}
	return fmt.Sprint(v)
}
