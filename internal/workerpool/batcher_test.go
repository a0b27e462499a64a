package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/store"
)

type fakeIndexer struct {
	mu        sync.Mutex
	indexed   [][]*store.Document
	deleted   [][]string
	indexErr  error
	deleteErr error
}

func (f *fakeIndexer) Index(ctx context.Context, docs []*store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, docs)
	return f.indexErr
}

func (f *fakeIndexer) Delete(ctx context.Context, docIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, docIDs)
	return f.deleteErr
}

func (f *fakeIndexer) indexCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.indexed)
}

func (f *fakeIndexer) totalIndexedDocs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, batch := range f.indexed {
		n += len(batch)
	}
	return n
}

func TestBatcher_FlushesAtTargetSize(t *testing.T) {
	idx := &fakeIndexer{}
	b := NewBatcher(idx, 3, 10, time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.AddIndex(context.Background(), "doc", &store.Document{ID: "doc", Content: "x"}))
	}

	assert.Equal(t, 1, idx.indexCallCount())
	assert.Equal(t, 3, idx.totalIndexedDocs())
	assert.Equal(t, 0, b.Pending())
}

func TestBatcher_FlushesOnTimeout(t *testing.T) {
	idx := &fakeIndexer{}
	b := NewBatcher(idx, 100, 200, 20*time.Millisecond)

	require.NoError(t, b.AddIndex(context.Background(), "doc", &store.Document{ID: "doc"}))
	assert.Equal(t, 1, b.Pending())

	assert.Eventually(t, func() bool {
		return idx.indexCallCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBatcher_ForceFlushesAtHardMax(t *testing.T) {
	idx := &fakeIndexer{}
	b := NewBatcher(idx, 100, 3, time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.AddIndex(context.Background(), "doc", &store.Document{ID: "doc"}))
	}

	assert.Equal(t, 1, idx.indexCallCount())
	assert.Equal(t, 0, b.Pending())
}

func TestBatcher_RetainsOpsAndErrorsAtCapacityWhenStoreKeepsFailing(t *testing.T) {
	idx := &fakeIndexer{indexErr: assert.AnError}
	b := NewBatcher(idx, 100, 2, time.Hour)

	require.NoError(t, b.AddIndex(context.Background(), "a", &store.Document{ID: "a"}))
	err := b.AddIndex(context.Background(), "b", &store.Document{ID: "b"})

	// The forced flush at hard max fails, so both ops stay buffered and
	// the hard-max condition is still true afterward.
	assert.ErrorIs(t, err, ErrBatchAtCapacity)
	assert.Equal(t, 2, b.Pending())
}

func TestBatcher_RetriesFailedOpsOnNextFlush(t *testing.T) {
	idx := &fakeIndexer{indexErr: assert.AnError}
	b := NewBatcher(idx, 2, 10, time.Hour)

	require.NoError(t, b.AddIndex(context.Background(), "a", &store.Document{ID: "a"}))
	require.NoError(t, b.AddIndex(context.Background(), "b", &store.Document{ID: "b"}))
	assert.Equal(t, 2, b.Pending(), "failed flush must keep ops buffered, not drop them")

	idx.mu.Lock()
	idx.indexErr = nil
	idx.mu.Unlock()

	b.Flush(context.Background())
	assert.Equal(t, 0, b.Pending())

	idx.mu.Lock()
	defer idx.mu.Unlock()
	require.NotEmpty(t, idx.indexed)
	assert.Len(t, idx.indexed[len(idx.indexed)-1], 2, "the successful retry flush should carry both originally-failed ops")
}

func TestBatcher_IndexAndDeleteCoalesceSeparately(t *testing.T) {
	idx := &fakeIndexer{}
	b := NewBatcher(idx, 4, 10, time.Hour)

	require.NoError(t, b.AddIndex(context.Background(), "a", &store.Document{ID: "a"}))
	require.NoError(t, b.AddDelete(context.Background(), "b"))
	require.NoError(t, b.AddIndex(context.Background(), "c", &store.Document{ID: "c"}))
	require.NoError(t, b.AddDelete(context.Background(), "d"))

	require.Equal(t, 1, idx.indexCallCount())
	assert.Equal(t, 2, idx.totalIndexedDocs())
	require.Len(t, idx.deleted, 1)
	assert.ElementsMatch(t, []string{"b", "d"}, idx.deleted[0])
}
