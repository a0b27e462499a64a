package ranker

import (
	"sync"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/ringbuffer"
)

// DefaultBehaviorWindow is the number of most recent accesses retained
// per BehaviorTracker.
const DefaultBehaviorWindow = 100

type access struct {
	path string
	at   time.Time
}

// BehaviorTracker records a sliding window of the last N path accesses
// and derives per-path counts and most-recent-access times from it on
// demand. Recording is optional: a nil *BehaviorTracker makes the
// frequency component contribute zero, per the degrade-gracefully
// clause in its contract.
type BehaviorTracker struct {
	mu  sync.Mutex
	buf *ringbuffer.Buffer[access]
}

// NewBehaviorTracker creates a tracker retaining the last window
// accesses. window <= 0 uses DefaultBehaviorWindow.
func NewBehaviorTracker(window int) *BehaviorTracker {
	if window <= 0 {
		window = DefaultBehaviorWindow
	}
	return &BehaviorTracker{buf: ringbuffer.New[access](window)}
}

// Record notes that path was accessed at at.
func (t *BehaviorTracker) Record(path string, at time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Add(access{path: path, at: at})
}

// AccessCount returns how many times path appears in the current
// window.
func (t *BehaviorTracker) AccessCount(path string) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, a := range t.buf.Items() {
		if a.path == path {
			count++
		}
	}
	return count
}

// LastAccess returns the most recent access time recorded for path
// within the current window, and whether one exists at all.
func (t *BehaviorTracker) LastAccess(path string) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var last time.Time
	found := false
	for _, a := range t.buf.Items() {
		if a.path == path && (!found || a.at.After(last)) {
			last = a.at
			found = true
		}
	}
	return last, found
}
