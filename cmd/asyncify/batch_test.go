package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/asyncify"
	"github.com/electronicarts/ea-async/errors"
)

func newBatch(cfg TransformConfig) (*batch, *bytes.Buffer) {
	var stderr bytes.Buffer
	return &batch{cfg: cfg, logger: zap.NewNop(), stderr: &stderr}, &stderr
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "a.unit", plainSource)
	writeUnit(t, dir, "nested/b.unit", asyncSource)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	single := writeUnit(t, t.TempDir(), "c.bin", plainSource)

	inputs, err := collectInputs([]string{dir, single})
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	rels := map[string]string{}
	for _, in := range inputs {
		rels[in.path] = in.rel
	}
	require.Equal(t, "a.unit", rels[filepath.Join(dir, "a.unit")])
	require.Equal(t, filepath.Join("nested", "b.unit"), rels[filepath.Join(dir, "nested", "b.unit")])
	require.Equal(t, "c.bin", rels[single])
}

func TestCollectInputsReportsEveryMissingPath(t *testing.T) {
	dir := t.TempDir()
	_, err := collectInputs([]string{filepath.Join(dir, "x"), filepath.Join(dir, "y")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "x")
	require.Contains(t, err.Error(), "y")
}

func TestBatchInPlace(t *testing.T) {
	dir := t.TempDir()
	async := writeUnit(t, dir, "async.unit", asyncSource)
	plain := writeUnit(t, dir, "plain.unit", plainSource)
	before, err := os.ReadFile(plain)
	require.NoError(t, err)

	inputs, err := collectInputs([]string{dir})
	require.NoError(t, err)

	b, stderr := newBatch(TransformConfig{Workers: 2})
	report := b.run(context.Background(), inputs)
	require.NoError(t, report.Err())
	require.Equal(t, 1, report.Transformed)
	require.Equal(t, 1, report.Unchanged)
	require.Empty(t, stderr.String())

	data, err := os.ReadFile(async)
	require.NoError(t, err)
	require.True(t, asyncify.IsTransformed(data))

	after, err := os.ReadFile(plain)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestBatchOutputDirectory(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	async := writeUnit(t, src, "pkg/async.unit", asyncSource)
	writeUnit(t, src, "plain.unit", plainSource)

	inputs, err := collectInputs([]string{src})
	require.NoError(t, err)

	b, _ := newBatch(TransformConfig{Output: out})
	report := b.run(context.Background(), inputs)
	require.NoError(t, report.Err())

	// Inputs are untouched; every unit lands in the output tree.
	data, err := os.ReadFile(async)
	require.NoError(t, err)
	require.False(t, asyncify.IsTransformed(data))

	data, err = os.ReadFile(filepath.Join(out, "pkg", "async.unit"))
	require.NoError(t, err)
	require.True(t, asyncify.IsTransformed(data))
	require.FileExists(t, filepath.Join(out, "plain.unit"))
}

func TestBatchFailures(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "good.unit", asyncSource)
	bad := filepath.Join(dir, "bad.unit")
	require.NoError(t, os.WriteFile(bad, []byte("not a unit"), 0o644))

	inputs, err := collectInputs([]string{dir})
	require.NoError(t, err)

	b, stderr := newBatch(TransformConfig{})
	report := b.run(context.Background(), inputs)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Transformed)
	require.Contains(t, stderr.String(), "Failed to parse unit")

	err = report.Err()
	require.Error(t, err)
	var batchErr *errors.BatchError
	require.True(t, stderrors.As(err, &batchErr))
	require.Len(t, batchErr.Files, 1)
	require.Equal(t, bad, batchErr.Files[0].Path)
	require.ErrorIs(t, batchErr.Files[0].Cause, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidData})
}

func TestBatchDiagnostics(t *testing.T) {
	dir := t.TempDir()
	p := writeUnit(t, dir, "misuse.unit", misuseSource)

	b, stderr := newBatch(TransformConfig{})
	b.dryRun = true
	report := b.run(context.Background(), []input{{path: p, rel: "misuse.unit"}})

	require.NoError(t, report.Err())
	require.Equal(t, StatusUnchanged, report.Files[0].Status)
	require.Len(t, report.Files[0].Diagnostics, 1)
	require.Contains(t, stderr.String(), "Invalid use of await in blocking")
	require.Contains(t, stderr.String(), p)
}

func TestBatchSharedClasses(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "lib.unit", taskLibSource)
	user := writeUnit(t, dir, "user.unit", taskSource)

	inputs, err := collectInputs([]string{dir})
	require.NoError(t, err)

	// On its own the user unit cannot tell that Task is a Future.
	b, stderr := newBatch(TransformConfig{})
	b.dryRun = true
	report := b.run(context.Background(), inputs)
	require.Equal(t, 2, report.Unchanged)
	require.Contains(t, stderr.String(), "Invalid use of await in wait: the result type Task is not a Future")

	loader, err := loadClasspath(nil, inputPaths(inputs)...)
	require.NoError(t, err)
	b, stderr = newBatch(TransformConfig{})
	b.loader = loader
	report = b.run(context.Background(), inputs)
	require.NoError(t, report.Err())
	require.Equal(t, 1, report.Transformed)
	require.Equal(t, 1, report.Unchanged)
	require.Empty(t, stderr.String())

	for _, f := range report.Files {
		if f.Path == user {
			require.Equal(t, StatusTransformed, f.Status)
		}
	}
	data, err := os.ReadFile(user)
	require.NoError(t, err)
	require.True(t, asyncify.IsTransformed(data))
}

func TestBatchCancelled(t *testing.T) {
	dir := t.TempDir()
	p := writeUnit(t, dir, "a.unit", asyncSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, _ := newBatch(TransformConfig{Workers: 1})
	report := b.run(ctx, []input{{path: p, rel: "a.unit"}, {path: p, rel: "a.unit"}})
	require.Equal(t, 2, report.Failed)
	require.ErrorIs(t, report.Err(), &errors.BatchError{})
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	in := &Report{
		Files:       []FileResult{{Path: "a.unit", Status: StatusTransformed, Output: "out/a.unit"}},
		Transformed: 1,
	}
	require.NoError(t, WriteReport(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, in.Files[0].Path, got.Files[0].Path)
	require.Equal(t, StatusTransformed, got.Files[0].Status)
	require.Equal(t, 1, got.Transformed)
}

func TestSummary(t *testing.T) {
	var out bytes.Buffer
	b, _ := newBatch(TransformConfig{})
	b.summary(&out, &Report{
		Files: []FileResult{
			{Path: "a.unit", Status: StatusTransformed, Output: "out/a.unit"},
			{Path: "b.unit", Status: StatusFailed},
		},
		Transformed: 1,
		Failed:      1,
	})
	require.Contains(t, out.String(), "a.unit -> out/a.unit")
	require.Contains(t, out.String(), "1 transformed, 0 unchanged, 1 failed")
}
