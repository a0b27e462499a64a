package degrade

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/store"
)

type fakeBM25 struct {
	results []*store.BM25Result
}

func (f *fakeBM25) Index(ctx context.Context, docs []*store.Document) error { return nil }
func (f *fakeBM25) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return f.results, nil
}
func (f *fakeBM25) Delete(ctx context.Context, docIDs []string) error { return nil }
func (f *fakeBM25) AllIDs() ([]string, error)                         { return nil, nil }
func (f *fakeBM25) Stats() *store.IndexStats                          { return &store.IndexStats{} }
func (f *fakeBM25) Save(path string) error                            { return nil }
func (f *fakeBM25) Load(path string) error                            { return nil }
func (f *fakeBM25) Close() error                                      { return nil }

func TestFTSBackend_TranslatesBM25ResultsToHits(t *testing.T) {
	bm := &fakeBM25{results: []*store.BM25Result{{DocID: "a.go", Score: 1.2}}}
	cs := store.NewContentSearcher(bm, nil)
	backend := NewFTSBackend(cs)

	hits, err := backend.Search(context.Background(), "/proj", "hello", 10)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.go", hits[0].Path)
	assert.Equal(t, "fts", backend.Name())
	assert.Equal(t, LevelFull, backend.Level())
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}
func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (e *fakeEmbedder) Dimensions() int   { return len(e.vec) }
func (e *fakeEmbedder) ModelName() string { return "fake" }

type fakeVectorStore struct {
	results []*store.VectorResult
}

func (v *fakeVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	return nil
}
func (v *fakeVectorStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return v.results, nil
}
func (v *fakeVectorStore) Delete(ctx context.Context, ids []string) error { return nil }
func (v *fakeVectorStore) AllIDs() []string                              { return nil }
func (v *fakeVectorStore) Contains(id string) bool                       { return false }
func (v *fakeVectorStore) Count() int                                    { return len(v.results) }
func (v *fakeVectorStore) Save(path string) error                        { return nil }
func (v *fakeVectorStore) Load(path string) error                        { return nil }
func (v *fakeVectorStore) Close() error                                  { return nil }

func TestVectorBackend_EmbedsQueryAndResolvesPaths(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	vs := &fakeVectorStore{results: []*store.VectorResult{{ID: "chunk-1", Score: 0.9}}}
	backend := NewVectorBackend(embedder, vs, func(id string) string { return "resolved/" + id })

	hits, err := backend.Search(context.Background(), "/proj", "semantic query", 5)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "resolved/chunk-1", hits[0].Path)
	assert.Equal(t, LevelLexicalDown, backend.Level())
}

func TestVectorBackend_EmbeddingFailurePropagates(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("model unavailable")}
	vs := &fakeVectorStore{}
	backend := NewVectorBackend(embedder, vs, nil)

	_, err := backend.Search(context.Background(), "/proj", "q", 5)
	assert.Error(t, err)
}

// fakeExecCommandContext stands in for rg/grep with plain POSIX
// utilities (printf, false) so the tests don't depend on either binary
// being installed.
func fakeExecCommandContext(output string, exitCode int) processRunner {
	if exitCode != 0 {
		return func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "false")
		}
	}
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "printf", "%s", output)
	}
}

func TestRipgrepBackend_ParsesMatchLines(t *testing.T) {
	backend := NewRipgrepBackend("rg")
	backend.run = fakeExecCommandContext("main.go:12:func main() {\n", 0)

	hits, err := backend.Search(context.Background(), t.TempDir(), "func main", 10)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "main.go", hits[0].Path)
	assert.Equal(t, 12, hits[0].Line)
	assert.Equal(t, LevelAllDown, backend.Level())
}

func TestRipgrepBackend_ExitCodeOneIsNoMatchesNotError(t *testing.T) {
	backend := NewRipgrepBackend("rg")
	backend.run = fakeExecCommandContext("", 1)

	hits, err := backend.Search(context.Background(), t.TempDir(), "nomatch", 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRipgrepBackend_RejectsUnsafePatternBeforeExec(t *testing.T) {
	backend := NewRipgrepBackend("rg")
	backend.run = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		t.Fatal("process must not be started for an unsafe pattern")
		return nil
	}

	_, err := backend.Search(context.Background(), t.TempDir(), "rm -rf $(whoami)", 10)
	assert.Error(t, err)
}

func TestGrepBackend_ParsesMatchLines(t *testing.T) {
	backend := NewGrepBackend("grep")
	backend.run = fakeExecCommandContext("util.go:4:func helper() {\n", 0)

	hits, err := backend.Search(context.Background(), t.TempDir(), "func helper", 10)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "util.go", hits[0].Path)
	assert.Equal(t, LevelAllDown, backend.Level())
}

func TestRipgrepBackend_PatternNeverInterpolatedIntoShellString(t *testing.T) {
	backend := NewRipgrepBackend("rg")
	var capturedArgs []string
	backend.run = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = args
		return exec.CommandContext(ctx, "true")
	}

	_, _ = backend.Search(context.Background(), filepath.Join(t.TempDir()), "needle", 10)

	require.NotEmpty(t, capturedArgs)
	found := false
	for _, a := range capturedArgs {
		if a == "needle" {
			found = true
		}
	}
	assert.True(t, found, "pattern must appear as its own argv entry")
}
