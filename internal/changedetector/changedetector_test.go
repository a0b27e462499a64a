package changedetector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/scanner"
	"github.com/Aman-CERP/amanmcp/internal/statcache"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	cache, err := statcache.New(0)
	require.NoError(t, err)
	return New(cache, Config{HashWorkers: 2})
}

func writeFile(t *testing.T, path, content string) *scanner.FileInfo {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return &scanner.FileInfo{
		Path:    filepath.Base(path),
		AbsPath: path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func changeByPath(changes []Change, path string) (Change, bool) {
	for _, c := range changes {
		if c.Path == path {
			return c, true
		}
	}
	return Change{}, false
}

func TestDetect_NewFileIsAdded(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "a.go"), "package a")

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), []*scanner.FileInfo{f}, map[string]*store.File{})
	require.NoError(t, err)

	ch, ok := changeByPath(changes, "a.go")
	require.True(t, ok)
	assert.Equal(t, Added, ch.Type)
	assert.NotEmpty(t, ch.Hash)
	assert.NoError(t, ch.HashErr)
}

func TestDetect_UnchangedSkipsHashing(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "a.go"), "package a")

	stored := map[string]*store.File{
		"a.go": {Path: "a.go", Size: f.Size, ModTime: f.ModTime, ContentHash: "cached-hash"},
	}

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), []*scanner.FileInfo{f}, stored)
	require.NoError(t, err)

	ch, ok := changeByPath(changes, "a.go")
	require.True(t, ok)
	assert.Equal(t, Unchanged, ch.Type)
	// Unchanged reuses the stored hash rather than recomputing it.
	assert.Equal(t, "cached-hash", ch.Hash)
}

func TestDetect_ModifiedWhenSizeDiffers(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "a.go"), "package a; var x = 1")

	stored := map[string]*store.File{
		"a.go": {Path: "a.go", Size: f.Size + 10, ModTime: f.ModTime, ContentHash: "stale-hash"},
	}

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), []*scanner.FileInfo{f}, stored)
	require.NoError(t, err)

	ch, ok := changeByPath(changes, "a.go")
	require.True(t, ok)
	assert.Equal(t, Modified, ch.Type)
	assert.NotEqual(t, "stale-hash", ch.Hash)
	assert.NotEmpty(t, ch.Hash)
}

func TestDetect_ModifiedWhenModTimeDiffers(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "a.go"), "package a")

	stored := map[string]*store.File{
		"a.go": {Path: "a.go", Size: f.Size, ModTime: f.ModTime.Add(-time.Hour), ContentHash: "stale-hash"},
	}

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), []*scanner.FileInfo{f}, stored)
	require.NoError(t, err)

	ch, ok := changeByPath(changes, "a.go")
	require.True(t, ok)
	assert.Equal(t, Modified, ch.Type)
}

func TestDetect_MissingFromScanIsDeleted(t *testing.T) {
	stored := map[string]*store.File{
		"gone.go": {Path: "gone.go", Size: 10, ModTime: time.Now(), ContentHash: "old-hash"},
	}

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), nil, stored)
	require.NoError(t, err)

	ch, ok := changeByPath(changes, "gone.go")
	require.True(t, ok)
	assert.Equal(t, Deleted, ch.Type)
	assert.Equal(t, "old-hash", ch.Hash)
}

func TestDetect_EmptyFileUsesWellKnownHash(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "empty.go"), "")

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), []*scanner.FileInfo{f}, map[string]*store.File{})
	require.NoError(t, err)

	ch, ok := changeByPath(changes, "empty.go")
	require.True(t, ok)
	assert.Equal(t, statcache.EmptyFileHash, ch.Hash)
}

func TestDetect_PreservesInputOrderAgainstCompletion(t *testing.T) {
	dir := t.TempDir()
	var infos []*scanner.FileInfo
	for i := 0; i < 20; i++ {
		infos = append(infos, writeFile(t, filepath.Join(dir, string(rune('a'+i))+".go"), "package p"))
	}

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), infos, map[string]*store.File{})
	require.NoError(t, err)
	require.Len(t, changes, len(infos))

	for _, f := range infos {
		ch, ok := changeByPath(changes, f.Path)
		require.True(t, ok, "missing change for %s", f.Path)
		assert.Equal(t, Added, ch.Type)
		assert.NotEmpty(t, ch.Hash)
	}
}

func TestDetect_HashFailureIsolatedToOneFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, filepath.Join(dir, "good.go"), "package p")
	missing := &scanner.FileInfo{Path: "missing.go", AbsPath: filepath.Join(dir, "missing.go")}

	d := newDetector(t)
	changes, err := d.Detect(context.Background(), []*scanner.FileInfo{good, missing}, map[string]*store.File{})
	require.NoError(t, err)

	goodCh, ok := changeByPath(changes, "good.go")
	require.True(t, ok)
	assert.NoError(t, goodCh.HashErr)
	assert.NotEmpty(t, goodCh.Hash)

	missingCh, ok := changeByPath(changes, "missing.go")
	require.True(t, ok)
	assert.Error(t, missingCh.HashErr)
}

// fakeStore embeds the interface so only SaveFiles needs a concrete
// implementation; any other call panics with a nil-pointer dereference,
// which is fine since Confirm only ever calls SaveFiles.
type fakeStore struct {
	store.MetadataStore
	saved []*store.File
}

func (f *fakeStore) SaveFiles(ctx context.Context, files []*store.File) error {
	f.saved = append(f.saved, files...)
	return nil
}

func TestConfirm_PersistsObservedRecord(t *testing.T) {
	fs := &fakeStore{}
	d := newDetector(t)

	file := &store.File{ID: "abc", ProjectID: "proj", Path: "a.go", Size: 10, ContentHash: "h"}
	require.NoError(t, d.Confirm(context.Background(), fs, file))

	require.Len(t, fs.saved, 1)
	assert.Equal(t, file, fs.saved[0])
}
