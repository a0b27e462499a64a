package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSearcher struct {
	calls int
	hits  []*SearchHit
}

func (c *countingSearcher) Search(ctx context.Context, query string, isPattern bool, limit int) ([]*SearchHit, error) {
	c.calls++
	return c.hits, nil
}

func TestCachedIndex_SecondIdenticalSearchHitsCache(t *testing.T) {
	idx := &fakeIndexerStore{}
	search := &countingSearcher{hits: []*SearchHit{{DocID: "a"}}}
	c := NewCachedIndex(idx, search, 10, time.Minute)

	_, err := c.Search(context.Background(), "content", "hello", false, 10)
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "content", "hello", false, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, search.calls)
}

func TestCachedIndex_DistinctKeysDoNotCollide(t *testing.T) {
	idx := &fakeIndexerStore{}
	search := &countingSearcher{hits: []*SearchHit{{DocID: "a"}}}
	c := NewCachedIndex(idx, search, 10, time.Minute)

	_, _ = c.Search(context.Background(), "content", "hello", false, 10)
	_, _ = c.Search(context.Background(), "file_paths", "hello", false, 10)
	_, _ = c.Search(context.Background(), "content", "hello", true, 10)

	assert.Equal(t, 3, search.calls)
}

func TestCachedIndex_IndexInvalidatesMatchingQueries(t *testing.T) {
	idx := &fakeIndexerStore{}
	search := &countingSearcher{hits: []*SearchHit{{DocID: "a"}}}
	c := NewCachedIndex(idx, search, 10, time.Minute)

	_, _ = c.Search(context.Background(), "content", "hello", false, 10)
	require.NoError(t, c.Index(context.Background(), []*Document{{ID: "a", Content: "say hello world"}}))
	_, _ = c.Search(context.Background(), "content", "hello", false, 10)

	assert.Equal(t, 2, search.calls, "write touching a cached query's term must invalidate it")
}

func TestCachedIndex_DeletePurgesCache(t *testing.T) {
	idx := &fakeIndexerStore{}
	search := &countingSearcher{hits: []*SearchHit{{DocID: "a"}}}
	c := NewCachedIndex(idx, search, 10, time.Minute)

	_, _ = c.Search(context.Background(), "content", "hello", false, 10)
	require.NoError(t, c.Delete(context.Background(), []string{"a"}))
	_, _ = c.Search(context.Background(), "content", "hello", false, 10)

	assert.Equal(t, 2, search.calls)
}

func TestCachedIndex_UnrelatedWriteDoesNotInvalidate(t *testing.T) {
	idx := &fakeIndexerStore{}
	search := &countingSearcher{hits: []*SearchHit{{DocID: "a"}}}
	c := NewCachedIndex(idx, search, 10, time.Minute)

	_, _ = c.Search(context.Background(), "content", "hello", false, 10)
	require.NoError(t, c.Index(context.Background(), []*Document{{ID: "z", Content: "completely unrelated text"}}))
	_, _ = c.Search(context.Background(), "content", "hello", false, 10)

	assert.Equal(t, 1, search.calls, "write not touching the cached query's term must not invalidate it")
}

type fakeIndexerStore struct {
	indexed []*Document
	deleted []string
}

func (f *fakeIndexerStore) Index(ctx context.Context, docs []*Document) error {
	f.indexed = append(f.indexed, docs...)
	return nil
}

func (f *fakeIndexerStore) Delete(ctx context.Context, docIDs []string) error {
	f.deleted = append(f.deleted, docIDs...)
	return nil
}
