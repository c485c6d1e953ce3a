package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electronicarts/ea-async/asm"
)

const asyncSource = `
(unit
  (import $await async/Await await (param Future) (result Object))
  (import $completed Future completed (param Object) (result Future))
  (import $concat String concat (param String String) (result String))

  (func $greet (param Future String) (result Future)
    load 1
    load 0
    invoke $await
    checkcast String
    invoke $concat
    invoke $completed
    retval)

  (func $twice (param I) (result I)
    load 0
    iconst 2
    mul
    retval))
`

const plainSource = `
(unit
  (func $inc (param I) (result I)
    load 0
    iconst 1
    add
    retval))
`

const misuseSource = `
(unit
  (import $await async/Await await (param Future) (result Object))
  (func $blocking (param Future) (result Object)
    load 0
    invoke $await
    retval))
`

// taskLibSource declares Task; taskSource uses it without declaring it.
const taskLibSource = `
(unit
  (class Task Future)
  (func $id (param I) (result I)
    load 0
    retval))
`

const taskSource = `
(unit
  (import $await async/Await await (param Future) (result Object))
  (func $wait (param Future) (result Task)
    load 0
    invoke $await
    pop
    load 0
    checkcast Task
    retval)

  (func $echo (param Task) (result Task)
    load 0
    retval))
`

// writeUnit assembles src into dir/name.
func writeUnit(t *testing.T, dir, name, src string) string {
	t.Helper()
	data, err := asm.Compile(src)
	require.NoError(t, err)
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}
