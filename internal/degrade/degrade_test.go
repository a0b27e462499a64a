package degrade

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name    string
	level   Level
	hits    []Hit
	err     error
	calls   int
	lastPat string
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Level() Level { return f.level }
func (f *fakeBackend) Search(ctx context.Context, projectPath, pattern string, limit int) ([]Hit, error) {
	f.calls++
	f.lastPat = pattern
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func TestExecute_FirstBackendSucceedsStaysAtFull(t *testing.T) {
	dir := t.TempDir()
	fts := &fakeBackend{name: "fts", level: LevelFull, hits: []Hit{{Path: "a.go"}}}
	vector := &fakeBackend{name: "vector", level: LevelLexicalDown}
	c := New([]Backend{fts, vector}, 5, time.Minute, nil)

	res := c.Execute(context.Background(), "foo", []string{dir}, Options{Limit: 10})

	require.NoError(t, res.Err)
	assert.Equal(t, LevelFull, res.Level)
	assert.Equal(t, "fts", res.BackendUsed)
	assert.Equal(t, 0, vector.calls)
	assert.Empty(t, res.FallbackReason)
}

func TestExecute_FallsThroughToNextBackendOnFailure(t *testing.T) {
	dir := t.TempDir()
	fts := &fakeBackend{name: "fts", level: LevelFull, err: errors.New("index corrupt")}
	vector := &fakeBackend{name: "vector", level: LevelLexicalDown, hits: []Hit{{Path: "b.go"}}}
	c := New([]Backend{fts, vector}, 5, time.Minute, nil)

	res := c.Execute(context.Background(), "foo", []string{dir}, Options{Limit: 10})

	require.NoError(t, res.Err)
	assert.Equal(t, LevelLexicalDown, res.Level)
	assert.Equal(t, "vector", res.BackendUsed)
	assert.NotEmpty(t, res.FallbackReason)
}

func TestExecute_AllBackendsDownReturnsNoneLevel(t *testing.T) {
	dir := t.TempDir()
	fts := &fakeBackend{name: "fts", level: LevelFull, err: errors.New("down")}
	grep := &fakeBackend{name: "grep", level: LevelAllDown, err: errors.New("down")}
	c := New([]Backend{fts, grep}, 5, time.Minute, nil)

	res := c.Execute(context.Background(), "foo", []string{dir}, Options{Limit: 10})

	assert.Error(t, res.Err)
	assert.Equal(t, LevelNone, res.Level)
	assert.Empty(t, res.Results)
}

func TestExecute_UnhealthyProjectIsSkippedNotFatal(t *testing.T) {
	healthyDir := t.TempDir()
	missingDir := filepath.Join(healthyDir, "does-not-exist")
	fts := &fakeBackend{name: "fts", level: LevelFull, hits: []Hit{{Path: "a.go"}}}
	c := New([]Backend{fts}, 5, time.Minute, nil)

	res := c.Execute(context.Background(), "foo", []string{healthyDir, missingDir}, Options{Limit: 10})

	require.NoError(t, res.Err)
	assert.Equal(t, LevelFull, res.Level)
	assert.Contains(t, res.ProjectsSkipped, missingDir)
	assert.Equal(t, 1, fts.calls)
}

func TestExecute_ZeroHealthyProjectsReturnsNoneWithError(t *testing.T) {
	fts := &fakeBackend{name: "fts", level: LevelFull}
	c := New([]Backend{fts}, 5, time.Minute, nil)

	res := c.Execute(context.Background(), "foo", []string{filepath.Join(t.TempDir(), "gone")}, Options{Limit: 10})

	assert.Error(t, res.Err)
	assert.Equal(t, LevelNone, res.Level)
	assert.Equal(t, 0, fts.calls)
}

func TestExecute_OpenCircuitSkipsBackendWithoutCalling(t *testing.T) {
	dir := t.TempDir()
	fts := &fakeBackend{name: "fts", level: LevelFull, err: errors.New("down")}
	vector := &fakeBackend{name: "vector", level: LevelLexicalDown, hits: []Hit{{Path: "c.go"}}}
	c := New([]Backend{fts, vector}, 1, time.Hour, nil)

	// First call trips the fts circuit (maxFailures=1).
	c.Execute(context.Background(), "foo", []string{dir}, Options{Limit: 10})
	require.Equal(t, 1, fts.calls)

	// Second call should skip straight past the now-open fts circuit.
	res := c.Execute(context.Background(), "foo", []string{dir}, Options{Limit: 10})
	assert.Equal(t, 1, fts.calls, "circuit open: fts must not be retried")
	assert.Equal(t, "vector", res.BackendUsed)
}

func TestProjectHealth_MissingPathErrors(t *testing.T) {
	err := ProjectHealth(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestProjectHealth_FileNotDirectoryErrors(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	err := ProjectHealth(f)
	assert.Error(t, err)
}

func TestProjectHealth_ReadableDirectoryIsHealthy(t *testing.T) {
	assert.NoError(t, ProjectHealth(t.TempDir()))
}

func TestProjectHealth_EmptyDirectoryIsHealthy(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, ProjectHealth(dir))
}
