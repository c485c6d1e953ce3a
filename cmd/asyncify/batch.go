package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/asyncify"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/errors"
)

// UnitExt is the extension of encoded units picked up from directories.
const UnitExt = ".unit"

// File status values in the batch report.
const (
	StatusTransformed = "transformed"
	StatusUnchanged   = "unchanged"
	StatusFailed      = "failed"
)

var (
	diagColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
)

// input is one unit found on the command line, with its path relative
// to the argument it was found under.
type input struct {
	path string
	rel  string
}

// FileResult is the outcome for one unit.
type FileResult struct {
	Path        string   `json:"path"`
	Output      string   `json:"output,omitempty"`
	Status      string   `json:"status"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Error       string   `json:"error,omitempty"`

	err error
}

// Report summarizes a batch run.
type Report struct {
	Files       []FileResult `json:"files"`
	Transformed int          `json:"transformed"`
	Unchanged   int          `json:"unchanged"`
	Failed      int          `json:"failed"`
}

// collectInputs expands directories into the units they contain. Every
// unreadable argument is reported, not just the first.
func collectInputs(args []string) ([]input, error) {
	var (
		inputs []input
		errs   error
	)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !info.IsDir() {
			inputs = append(inputs, input{path: arg, rel: filepath.Base(arg)})
			continue
		}
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(p) != UnitExt {
				return nil
			}
			rel, err := filepath.Rel(arg, p)
			if err != nil {
				return err
			}
			inputs = append(inputs, input{path: p, rel: rel})
			return nil
		})
		errs = multierr.Append(errs, err)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].path < inputs[j].path })
	return inputs, errs
}

// batch transforms units on a bounded pool of workers.
type batch struct {
	cfg    TransformConfig
	logger *zap.Logger
	stderr io.Writer
	// loader resolves classes declared by other units of the batch or
	// the classpath. It may be nil.
	loader bytecode.ClassResolver
	// dryRun transforms and verifies without writing anything.
	dryRun bool

	mu sync.Mutex // serializes diagnostic output
}

func (b *batch) run(ctx context.Context, inputs []input) *Report {
	results := make([]FileResult, len(inputs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(b.cfg.workers(), max(len(inputs), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = b.process(inputs[i])
			}
		}()
	}

	cancelled := func(from int) {
		for j := from; j < len(inputs); j++ {
			results[j] = FileResult{Path: inputs[j].path, Status: StatusFailed, err: ctx.Err()}
		}
	}
feed:
	for i := range inputs {
		if ctx.Err() != nil {
			cancelled(i)
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled(i)
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report := &Report{Files: results}
	for i := range results {
		r := &results[i]
		switch r.Status {
		case StatusTransformed:
			report.Transformed++
		case StatusUnchanged:
			report.Unchanged++
		case StatusFailed:
			report.Failed++
			r.Error = r.err.Error()
		}
	}
	return report
}

func (b *batch) process(in input) FileResult {
	res := FileResult{Path: in.path}
	fail := func(err error) FileResult {
		res.Status = StatusFailed
		res.err = err
		b.logger.Debug("unit failed", zap.String("path", in.path), zap.Error(err))
		return res
	}

	data, err := os.ReadFile(in.path)
	if err != nil {
		return fail(err)
	}

	sink := func(msg string) {
		res.Diagnostics = append(res.Diagnostics, msg)
		b.diagnostic(in.path, msg)
	}
	out, err := asyncify.Transform(b.loader, data, sink, b.cfg.options()...)
	switch {
	case stderrors.Is(err, asyncify.ErrUnchanged):
		res.Status = StatusUnchanged
		out = data
	case err != nil:
		return fail(err)
	default:
		res.Status = StatusTransformed
	}

	if b.dryRun {
		return res
	}
	// In place writes are skipped for unchanged units.
	if b.cfg.Output == "" && res.Status == StatusUnchanged {
		return res
	}
	dest := in.path
	if b.cfg.Output != "" {
		dest = filepath.Join(b.cfg.Output, in.rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fail(err)
		}
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return fail(err)
	}
	res.Output = dest
	b.logger.Debug("unit written", zap.String("path", in.path), zap.String("output", dest), zap.String("status", res.Status))
	return res
}

func (b *batch) diagnostic(path, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	diagColor.Fprint(b.stderr, "error")
	fmt.Fprintf(b.stderr, " %s: %s\n", path, msg)
}

// summary prints one line per unit and the totals.
func (b *batch) summary(w io.Writer, r *Report) {
	for _, f := range r.Files {
		switch f.Status {
		case StatusTransformed:
			okColor.Fprint(w, "transformed")
		case StatusUnchanged:
			warnColor.Fprint(w, "unchanged  ")
		case StatusFailed:
			diagColor.Fprint(w, "failed     ")
		}
		fmt.Fprintf(w, " %s", f.Path)
		if f.Output != "" && f.Output != f.Path {
			fmt.Fprintf(w, " -> %s", f.Output)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d transformed, %d unchanged, %d failed\n", r.Transformed, r.Unchanged, r.Failed)
}

// Err returns a BatchError listing every failed unit, or nil.
func (r *Report) Err() error {
	var failed []errors.FailedFile
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			failed = append(failed, errors.FailedFile{Path: f.Path, Cause: f.err})
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &errors.BatchError{Files: failed}
}

// WriteReport stores r as indented JSON.
func WriteReport(path string, r *Report) (err error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	_, err = f.Write(append(data, '\n'))
	return err
}
