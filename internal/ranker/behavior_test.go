package ranker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBehaviorTracker_CountsAccessesPerPath(t *testing.T) {
	tr := NewBehaviorTracker(10)
	now := time.Unix(1000, 0)
	tr.Record("a.go", now)
	tr.Record("b.go", now)
	tr.Record("a.go", now.Add(time.Minute))

	assert.Equal(t, 2, tr.AccessCount("a.go"))
	assert.Equal(t, 1, tr.AccessCount("b.go"))
	assert.Equal(t, 0, tr.AccessCount("c.go"))
}

func TestBehaviorTracker_LastAccessIsMostRecent(t *testing.T) {
	tr := NewBehaviorTracker(10)
	first := time.Unix(1000, 0)
	second := first.Add(time.Hour)
	tr.Record("a.go", first)
	tr.Record("a.go", second)

	last, ok := tr.LastAccess("a.go")
	assert.True(t, ok)
	assert.True(t, last.Equal(second))
}

func TestBehaviorTracker_WindowEvictsOldAccesses(t *testing.T) {
	tr := NewBehaviorTracker(2)
	now := time.Unix(1000, 0)
	tr.Record("a.go", now)
	tr.Record("b.go", now)
	tr.Record("c.go", now) // evicts "a.go" from the window

	assert.Equal(t, 0, tr.AccessCount("a.go"))
	assert.Equal(t, 1, tr.AccessCount("b.go"))
	assert.Equal(t, 1, tr.AccessCount("c.go"))
}

func TestBehaviorTracker_NilTrackerIsInert(t *testing.T) {
	var tr *BehaviorTracker
	tr.Record("a.go", time.Now())
	assert.Equal(t, 0, tr.AccessCount("a.go"))
	_, ok := tr.LastAccess("a.go")
	assert.False(t, ok)
}
