package gitignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCachedMatcher_FastRejectDirs(t *testing.T) {
	c := NewCached(New())
	assert.True(t, c.Match(".git", true))
	assert.True(t, c.Match("pkg/node_modules", true))
	assert.False(t, c.Match("pkg/node_modules", false))
}

func TestCachedMatcher_DefaultPatterns(t *testing.T) {
	c := NewCachedWithDefaults()
	assert.True(t, c.Match("secrets/id_rsa", false))
	assert.True(t, c.Match(".env", false))
	assert.False(t, c.Match("main.go", false))
}

func TestCachedMatcher_HiddenDirAllowList(t *testing.T) {
	c := NewCached(New())
	assert.True(t, c.Match(".obscure", true))
	assert.False(t, c.Match(".github", true))
}

func TestCachedMatcher_CachesResult(t *testing.T) {
	c := NewCached(New())
	c.AddPattern("*.log")
	assert.True(t, c.Match("a/b/out.log", false))
	// second call should hit the memoized path, same result.
	assert.True(t, c.Match("a/b/out.log", false))
}

func TestCachedMatcher_InvalidateOnNewPattern(t *testing.T) {
	c := NewCached(New())
	assert.False(t, c.Match("foo.txt", false))
	c.AddPattern("foo.txt")
	assert.True(t, c.Match("foo.txt", false))
}

func TestCachedMatcher_PanicRecoveredAsNotIgnored(t *testing.T) {
	m := New()
	c := NewCached(m)
	// A nil regex simulates a malformed rule slipping through; Match must
	// never panic out of the cache wrapper.
	m.rules = append(m.rules, rule{pattern: "broken"})
	assert.NotPanics(t, func() {
		c.Match("broken", false)
	})
}
