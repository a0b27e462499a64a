// Package statcache provides a memoized file-stat and content-hash cache
// used by the scanner and change detector to avoid re-reading unchanged
// files. Every cached StatRecord is immutable once constructed; an update
// replaces the cache entry rather than mutating it in place, so callers
// holding a previously returned *StatRecord never observe it changing
// underneath them.
package statcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
)

// EmptyFileHash is the SHA-256 hex digest of zero bytes, returned for
// empty files without opening them.
const EmptyFileHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// hashChunkSize is the buffer size used for streaming hash computation,
// chosen to keep memory bounded while hashing large files.
const hashChunkSize = 4 * 1024 * 1024

// DefaultCacheSize bounds the number of StatRecords held in memory.
const DefaultCacheSize = 50000

// DefaultTTL is how long a StatRecord stays eligible for return from Get
// (and for CleanupExpired to leave alone) after it was computed.
const DefaultTTL = 300 * time.Second

var (
	errEmptyPath      = fmt.Errorf("statcache: path is empty")
	errNullByteInPath = fmt.Errorf("statcache: path contains a null byte")
	errPathTraversal  = fmt.Errorf("statcache: path contains \"../\"")
)

// validatePath rejects the inputs spec.md's path-validation rule calls
// out explicitly: empty, null-byte-containing, or "../"-containing
// paths, checked before any public entry point touches the filesystem.
func validatePath(path string) error {
	if path == "" {
		return errEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return errNullByteInPath
	}
	if strings.Contains(path, "../") {
		return errPathTraversal
	}
	return nil
}

// StatRecord is an immutable snapshot of a file's stat + content hash at
// the time it was computed.
type StatRecord struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Hash     string
	CachedAt time.Time
}

// expired reports whether rec is older than ttl as of now.
func (rec *StatRecord) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(rec.CachedAt) >= ttl
}

// Stats is a snapshot of cache-wide counters.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache memoizes StatRecords keyed by absolute path.
type Cache struct {
	lru *lru.Cache[string, *StatRecord]
	ttl time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a Cache holding up to size entries, each valid for
// DefaultTTL after it is computed.
func New(size int) (*Cache, error) {
	return NewWithTTL(size, DefaultTTL)
}

// NewWithTTL creates a Cache holding up to size entries with a custom
// per-entry TTL. size <= 0 uses DefaultCacheSize; ttl <= 0 uses
// DefaultTTL.
func NewWithTTL(size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{ttl: ttl}
	lruCache, err := lru.NewWithEvict[string, *StatRecord](size, func(string, *StatRecord) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("statcache: %w", err)
	}
	c.lru = lruCache
	return c, nil
}

// Get returns the cached record for path if present and still valid: it
// must not have expired per the cache's TTL, and the file's current size
// and mtime (re-stated) must match what was cached. A stale, expired, or
// missing entry returns (nil, false), never an error — callers fall
// through to ComputeAndStore.
func (c *Cache) Get(path string) (*StatRecord, bool) {
	if err := validatePath(path); err != nil {
		c.misses.Add(1)
		return nil, false
	}
	rec, ok := c.lru.Get(path)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if rec.expired(time.Now(), c.ttl) {
		c.lru.Remove(path)
		c.misses.Add(1)
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	if info.Size() != rec.Size || !info.ModTime().Equal(rec.ModTime) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return rec, true
}

// Invalidate drops any cached record for path, used after a file is
// modified or deleted out from under the cache.
func (c *Cache) Invalidate(path string) {
	c.lru.Remove(path)
}

// InvalidateAll drops every cached record, used when the underlying
// filesystem tree is known to have changed out from under the cache
// wholesale (e.g. a watcher resync).
func (c *Cache) InvalidateAll() {
	c.lru.Purge()
}

// CleanupExpired removes every entry whose TTL has elapsed as of now,
// counting each removal as an eviction. Returns the number removed.
func (c *Cache) CleanupExpired(now time.Time) int {
	removed := 0
	for _, path := range c.lru.Keys() {
		rec, ok := c.lru.Peek(path)
		if !ok {
			continue
		}
		if rec.expired(now, c.ttl) {
			c.lru.Remove(path)
			c.evictions.Add(1)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of cache-wide counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// ComputeAndStore stats and hashes path, storing the result. It guards
// against a TOCTOU race (the file changing between the stat and the read)
// by re-stating after the read completes and retrying up to 3 times with
// a 1ms * attempt backoff, per the scanner's change-detection contract:
// a hash must always correspond to the exact bytes whose size/mtime were
// recorded alongside it.
func (c *Cache) ComputeAndStore(ctx context.Context, path string) (*StatRecord, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	cfg := amanerrors.RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     3 * time.Millisecond,
		Multiplier:   1,
	}

	attempt := 0
	rec, err := amanerrors.RetryWithResult(ctx, cfg, func() (*StatRecord, error) {
		attempt++
		before, err := os.Stat(path)
		if err != nil {
			return nil, amanerrors.IndexingError(amanerrors.ErrCodeStatRace, "stat failed", err)
		}

		hash, err := hashFile(path, before.Size())
		if err != nil {
			return nil, amanerrors.IndexingError(amanerrors.ErrCodeStatRace, "hash failed", err)
		}

		after, err := os.Stat(path)
		if err != nil {
			return nil, amanerrors.IndexingError(amanerrors.ErrCodeStatRace, "re-stat failed", err)
		}
		if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
			return nil, amanerrors.IndexingError(amanerrors.ErrCodeStatRace,
				fmt.Sprintf("file changed during hash (attempt %d)", attempt), nil)
		}

		return &StatRecord{
			Path:     path,
			Size:     after.Size(),
			ModTime:  after.ModTime(),
			Hash:     hash,
			CachedAt: time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	c.lru.Add(path, rec)
	return rec, nil
}

// hashFile streams path's contents through SHA-256 in fixed-size chunks,
// returning EmptyFileHash without opening the file when size is 0.
func hashFile(path string, size int64) (string, error) {
	if size == 0 {
		return EmptyFileHash, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
