package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default result-cache tuning, per the memoization contract content
// search sits behind.
const (
	DefaultResultCacheSize = 128
	DefaultResultCacheTTL  = 300 * time.Second
)

// resultCacheKey identifies a memoized query by the three fields that
// fully determine its result set.
type resultCacheKey struct {
	queryType string // "content" or "file_paths"
	query     string
	isPattern bool
}

func (k resultCacheKey) String() string {
	return fmt.Sprintf("%s\x00%t\x00%s", k.queryType, k.isPattern, k.query)
}

// Searcher is the subset of ContentSearcher's behavior CachedIndex
// memoizes. Any type with this shape (not just *ContentSearcher) can be
// wrapped.
type Searcher interface {
	Search(ctx context.Context, query string, isPattern bool, limit int) ([]*SearchHit, error)
}

// Indexer is the write side CachedIndex wraps. BM25Index already
// satisfies this structurally.
type Indexer interface {
	Index(ctx context.Context, docs []*Document) error
	Delete(ctx context.Context, docIDs []string) error
}

// CachedIndex decorates a Searcher plus an Indexer with an LRU+TTL
// result cache, invalidated conservatively on every write: rather than
// tracking which cached queries a given document could affect, any
// write simply drops every cached entry whose query string appears as a
// substring of (or contains) the written document's content — a cheap,
// deliberately over-eager rule the contract explicitly allows
// ("callers need not produce perfect invalidation").
type CachedIndex struct {
	inner Indexer
	search Searcher

	mu    sync.Mutex
	cache *expirable.LRU[string, []*SearchHit]
}

// NewCachedIndex wraps inner/search with a result cache of the given
// size and TTL. size <= 0 and ttl <= 0 fall back to the package
// defaults.
func NewCachedIndex(inner Indexer, search Searcher, size int, ttl time.Duration) *CachedIndex {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &CachedIndex{
		inner:  inner,
		search: search,
		cache:  expirable.NewLRU[string, []*SearchHit](size, nil, ttl),
	}
}

// Search serves from cache when possible, otherwise delegates and
// memoizes the result.
func (c *CachedIndex) Search(ctx context.Context, queryType, query string, isPattern bool, limit int) ([]*SearchHit, error) {
	key := resultCacheKey{queryType: queryType, query: query, isPattern: isPattern}.String()

	c.mu.Lock()
	if hits, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return hits, nil
	}
	c.mu.Unlock()

	hits, err := c.search.Search(ctx, query, isPattern, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(key, hits)
	c.mu.Unlock()
	return hits, nil
}

// Index writes through to inner and invalidates affected cache entries.
func (c *CachedIndex) Index(ctx context.Context, docs []*Document) error {
	if err := c.inner.Index(ctx, docs); err != nil {
		return err
	}
	for _, doc := range docs {
		c.invalidateMatching(doc.Content)
	}
	return nil
}

// Delete writes through to inner. Deleted document content is no longer
// available to test against cached queries, so every cached entry is
// dropped rather than left potentially stale.
func (c *CachedIndex) Delete(ctx context.Context, docIDs []string) error {
	if err := c.inner.Delete(ctx, docIDs); err != nil {
		return err
	}
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()
	return nil
}

// invalidateMatching drops every cached entry whose query string
// appears in content, conservatively covering any query that might now
// return a different result.
func (c *CachedIndex) invalidateMatching(content string) {
	lower := strings.ToLower(content)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.cache.Keys() {
		parts := strings.SplitN(key, "\x00", 3)
		if len(parts) != 3 {
			c.cache.Remove(key)
			continue
		}
		query := parts[2]
		if query != "" && strings.Contains(lower, strings.ToLower(query)) {
			c.cache.Remove(key)
		}
	}
}
