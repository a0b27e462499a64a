package gitignore

import (
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of (path, isDir) match results memoized by
// a CachedMatcher. Sized to match the stat cache and BM25 result cache so a
// single large repository's worth of paths fits without thrashing.
const DefaultCacheSize = 10000

// matchKey is the cache key for a single match lookup.
type matchKey struct {
	path  string
	isDir bool
}

// CachedMatcher wraps a Matcher with an LRU of previously computed results
// and a fast tier that rejects well-known directory basenames in O(1)
// before falling through to the regex rule list. A panic from the
// underlying regex engine is recovered and treated as "not ignored" — a
// buggy pattern should never abort a scan.
type CachedMatcher struct {
	inner     *Matcher
	cache     *lru.Cache[matchKey, bool]
	fastDirs  map[string]bool
	allowHide map[string]bool
}

// fastRejectDirs are basenames ignored outright without consulting the
// regex rule list. Kept separate from DefaultPatterns so the fast path
// stays a plain map lookup.
var fastRejectDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"target":       true,
	".amanmcp":     true,
}

// NewCached wraps m in a CachedMatcher with the default cache size.
func NewCached(m *Matcher) *CachedMatcher {
	c, err := lru.New[matchKey, bool](DefaultCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the package constant above.
		panic(err)
	}
	return &CachedMatcher{
		inner:     m,
		cache:     c,
		fastDirs:  fastRejectDirs,
		allowHide: AllowedHiddenDirs,
	}
}

// NewCachedWithDefaults builds a CachedMatcher over a Matcher preloaded
// with DefaultPatterns.
func NewCachedWithDefaults() *CachedMatcher {
	return NewCached(NewWithDefaults())
}

// Match reports whether path should be ignored, consulting the fast tier,
// then the memoization cache, then the underlying regex Matcher.
func (c *CachedMatcher) Match(path string, isDir bool) (ignored bool) {
	path = filepath.ToSlash(path)
	base := filepath.Base(path)

	if isDir && c.fastDirs[base] {
		return true
	}
	if strings.HasPrefix(base, ".") && base != "." && base != ".." && isDir && !c.allowHide[base] {
		// Hidden directories are ignored by default unless explicitly
		// allow-listed; still subject to negation rules below via the
		// slow path, so only short-circuit when no rule could negate it.
		if !c.inner.hasNegation() {
			return true
		}
	}

	key := matchKey{path: path, isDir: isDir}
	if v, ok := c.cache.Get(key); ok {
		return v
	}

	defer func() {
		if r := recover(); r != nil {
			ignored = false
		}
		c.cache.Add(key, ignored)
	}()

	ignored = c.inner.Match(path, isDir)
	return ignored
}

// AddPattern proxies to the underlying Matcher and invalidates the cache,
// since a new pattern can change the outcome of any previously memoized
// path.
func (c *CachedMatcher) AddPattern(pattern string) {
	c.inner.AddPattern(pattern)
	c.cache.Purge()
}

// AddFromFile proxies to the underlying Matcher and invalidates the cache.
func (c *CachedMatcher) AddFromFile(path, base string) error {
	err := c.inner.AddFromFile(path, base)
	c.cache.Purge()
	return err
}

// Invalidate drops every memoized result, used after a .gitignore file
// under the tree changes.
func (c *CachedMatcher) Invalidate() {
	c.cache.Purge()
}
