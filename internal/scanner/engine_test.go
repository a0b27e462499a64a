package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_ParallelDiscoversFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a")
	writeFile(t, filepath.Join(dir, "sub", "b.go"), "package b")
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.md"), "# hi")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: dir, Workers: 2})
	require.NoError(t, err)

	var paths []string
	for r := range results {
		require.NoError(t, r.Error)
		paths = append(paths, r.File.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"a.go", filepath.Join("sub", "b.go"), filepath.Join("sub", "deeper", "c.md")}, paths)
}

func TestScan_ExcludesDefaultDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.go"), "package keep")
	writeFile(t, filepath.Join(dir, "node_modules", "dep.js"), "module.exports = {}")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: dir})
	require.NoError(t, err)

	var paths []string
	for r := range results {
		paths = append(paths, r.File.Path)
	}
	assert.Equal(t, []string{"keep.go"}, paths)
}

func TestScan_RespectsTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: dir, ScanTimeout: time.Nanosecond})
	require.NoError(t, err)

	// Must not hang even if nothing is emitted before the timeout fires.
	for range results {
	}
}

func TestDirQueue_DrainsAndCloses(t *testing.T) {
	q := newDirQueue()
	q.push(workItem{absDir: "/a"})

	item, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "/a", item.absDir)

	q.push(workItem{absDir: "/a/b"})
	q.done() // finishes "/a", leaving "/a/b" pending

	item, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, "/a/b", item.absDir)
	q.done()

	_, ok = q.pop()
	assert.False(t, ok, "queue must close once pending reaches zero")
}
