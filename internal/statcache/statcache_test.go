package statcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAndStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	c, err := New(10)
	require.NoError(t, err)

	rec, err := c.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, EmptyFileHash, rec.Hash)
}

func TestGet_MissAfterModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	c, err := New(10)
	require.NoError(t, err)

	_, err = c.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)

	_, ok := c.Get(path)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("version two, longer"), 0o644))
	_, ok = c.Get(path)
	assert.False(t, ok, "cache must miss once size/mtime diverge from the cached record")
}

func TestComputeAndStore_DeterministicHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	c, err := New(10)
	require.NoError(t, err)

	r1, err := c.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)

	c2, err := New(10)
	require.NoError(t, err)
	r2, err := c2.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, r1.Hash, r2.Hash)
}

func TestInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c, err := New(10)
	require.NoError(t, err)
	_, err = c.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)

	c.Invalidate(path)
	_, ok := c.Get(path)
	assert.False(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(pathA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("b"), 0o644))

	c, err := New(10)
	require.NoError(t, err)
	_, err = c.ComputeAndStore(context.Background(), pathA)
	require.NoError(t, err)
	_, err = c.ComputeAndStore(context.Background(), pathB)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(pathA)
	assert.False(t, ok)
	_, ok = c.Get(pathB)
	assert.False(t, ok)
}

func TestGet_MissOnceTTLElapses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c, err := NewWithTTL(10, 10*time.Millisecond)
	require.NoError(t, err)
	_, err = c.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)

	_, ok := c.Get(path)
	assert.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get(path)
	assert.False(t, ok, "cache must miss once the TTL has elapsed even if the file is untouched")
}

func TestCleanupExpired_RemovesOnlyExpiredEntriesAndCountsEvictions(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "fresh.txt")
	stale := filepath.Join(dir, "stale.txt")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0o644))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	c, err := NewWithTTL(10, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = c.ComputeAndStore(context.Background(), stale)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = c.ComputeAndStore(context.Background(), fresh)
	require.NoError(t, err)

	removed := c.CleanupExpired(time.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestStats_TracksHitsAndMisses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c, err := New(10)
	require.NoError(t, err)

	_, ok := c.Get(path)
	require.False(t, ok)

	_, err = c.ComputeAndStore(context.Background(), path)
	require.NoError(t, err)

	_, ok = c.Get(path)
	require.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestStats_EvictionCountedWhenOverCapacity(t *testing.T) {
	dir := t.TempDir()
	c, err := New(1)
	require.NoError(t, err)

	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(pathA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("b"), 0o644))

	_, err = c.ComputeAndStore(context.Background(), pathA)
	require.NoError(t, err)
	_, err = c.ComputeAndStore(context.Background(), pathB)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestGet_RejectsInvalidPaths(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	_, ok := c.Get("")
	assert.False(t, ok)

	_, ok = c.Get("foo\x00bar")
	assert.False(t, ok)

	_, ok = c.Get("../etc/passwd")
	assert.False(t, ok)
}

func TestComputeAndStore_RejectsInvalidPaths(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	_, err = c.ComputeAndStore(context.Background(), "")
	assert.ErrorIs(t, err, errEmptyPath)

	_, err = c.ComputeAndStore(context.Background(), "a\x00b")
	assert.ErrorIs(t, err, errNullByteInPath)

	_, err = c.ComputeAndStore(context.Background(), "../secret")
	assert.ErrorIs(t, err, errPathTraversal)
}
