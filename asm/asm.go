package asm

import (
	"github.com/electronicarts/ea-async/asm/internal/parser"
	"github.com/electronicarts/ea-async/asm/internal/token"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// Parse assembles source into a unit.
func Parse(source string) (*bytecode.Unit, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		return nil, errors.ParseFailed("assembly", err)
	}
	u, err := parser.New(tokens).Parse()
	if err != nil {
		return nil, errors.ParseFailed("assembly", err)
	}
	return u, nil
}

// Compile assembles source into unit bytes.
func Compile(source string) ([]byte, error) {
	u, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return u.Encode(), nil
}
