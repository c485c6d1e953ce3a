package main

import (
	"io/fs"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/electronicarts/ea-async/bytecode"
)

// classpath maps every class declared by a set of units to its
// superclass. It lets one unit use classes another unit declares.
type classpath map[string]string

// Superclass implements bytecode.ClassResolver.
func (cp classpath) Superclass(name string) (string, bool) {
	s, ok := cp[name]
	return s, ok
}

// add records the class table of u. The first declaration of a name wins.
func (cp classpath) add(u *bytecode.Unit) {
	for _, c := range u.Classes {
		if _, ok := cp[c.Name]; ok {
			continue
		}
		super := c.Super
		if super == "" {
			super = bytecode.ClassObject
		}
		cp[c.Name] = super
	}
}

func isUnitFile(p string) bool {
	switch filepath.Ext(p) {
	case UnitExt, ".s", ".asm":
		return true
	}
	return false
}

// loadClasspath reads the classes of units, then of every unit file found
// under entries. Units that fail to read are skipped since the command
// reports them on its own. Classpath entries must all be readable.
func loadClasspath(entries []string, units ...string) (classpath, error) {
	cp := make(classpath)
	for _, p := range units {
		if u, err := parseUnitFile(p); err == nil {
			cp.add(u)
		}
	}

	var errs error
	for _, entry := range entries {
		err := filepath.WalkDir(entry, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || (p != entry && !isUnitFile(p)) {
				return nil
			}
			u, err := parseUnitFile(p)
			if err != nil {
				return err
			}
			cp.add(u)
			return nil
		})
		errs = multierr.Append(errs, err)
	}
	return cp, errs
}

func parseUnitFile(p string) (*bytecode.Unit, error) {
	data, err := readUnit(p)
	if err != nil {
		return nil, err
	}
	return bytecode.ParseUnit(data)
}

func inputPaths(inputs []input) []string {
	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = in.path
	}
	return paths
}
