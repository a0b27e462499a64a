package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/store"
)

// DefaultBatchSize is the default coalescing target before a flush.
const DefaultBatchSize = 50

// MaxBatchSize is the hard ceiling a Batcher will ever hold before a
// forced flush.
const MaxBatchSize = 500

// DefaultBatchTimeout is the default time-based flush trigger.
const DefaultBatchTimeout = 5 * time.Second

// DefaultShutdownFlushTimeout bounds the final flush awaited on Close.
const DefaultShutdownFlushTimeout = 10 * time.Second

// ErrBatchAtCapacity is returned by Add when a forced flush at the hard
// maximum still leaves the buffer full (the underlying store is
// presumably failing every flush attempt).
var ErrBatchAtCapacity = errors.New("workerpool: batch at capacity after forced flush")

// Indexer is the subset of the indexed-document store the worker pool
// and batcher need. store.BM25Index already satisfies this: Index
// accepts a slice, so a multi-document call already gets the atomic
// bulk-index behavior the scheduler contract asks for.
type Indexer interface {
	Index(ctx context.Context, docs []*store.Document) error
	Delete(ctx context.Context, docIDs []string) error
}

type bufferedOp struct {
	docID string
	doc   *store.Document // nil for a delete
}

// Batcher coalesces index/update/delete operations into periodic bulk
// calls against an Indexer, trading a little latency for far fewer
// round trips under sustained load. Flushing is triggered by size,
// time, or the hard maximum; a flush failure is logged, not retried —
// by the time an operation reaches the batcher its originating task has
// already been marked successful.
type Batcher struct {
	mu      sync.Mutex
	ops     []bufferedOp
	target  int
	hardMax int
	timeout time.Duration
	timer   *time.Timer

	store Indexer
}

// NewBatcher creates a Batcher flushing into store. target and hardMax
// fall back to DefaultBatchSize/MaxBatchSize when <= 0; timeout falls
// back to DefaultBatchTimeout.
func NewBatcher(store Indexer, target, hardMax int, timeout time.Duration) *Batcher {
	if target <= 0 {
		target = DefaultBatchSize
	}
	if hardMax <= 0 {
		hardMax = MaxBatchSize
	}
	if hardMax < target {
		hardMax = target
	}
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	return &Batcher{target: target, hardMax: hardMax, timeout: timeout, store: store}
}

// AddIndex buffers an index-or-update operation for doc.
func (b *Batcher) AddIndex(ctx context.Context, docID string, doc *store.Document) error {
	return b.add(ctx, bufferedOp{docID: docID, doc: doc})
}

// AddDelete buffers a delete operation for docID.
func (b *Batcher) AddDelete(ctx context.Context, docID string) error {
	return b.add(ctx, bufferedOp{docID: docID})
}

func (b *Batcher) add(ctx context.Context, op bufferedOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ops = append(b.ops, op)

	switch {
	case len(b.ops) >= b.hardMax:
		b.flushLocked(ctx)
		if len(b.ops) >= b.hardMax {
			return ErrBatchAtCapacity
		}
	case len(b.ops) >= b.target:
		b.flushLocked(ctx)
	default:
		b.armTimerLocked()
	}
	return nil
}

// armTimerLocked schedules a time-based flush if one isn't already
// pending. The deferred flush uses a fresh background context rather
// than the triggering call's context, since that request may well have
// already returned by the time the timer fires. Caller must hold b.mu.
func (b *Batcher) armTimerLocked() {
	if b.timer != nil {
		return
	}
	b.timer = time.AfterFunc(b.timeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownFlushTimeout)
		defer cancel()
		b.flushLocked(ctx)
	})
}

// flushLocked applies every buffered operation in one bulk Index call
// plus one bulk Delete call. A failed call is logged and its operations
// stay buffered for the next flush attempt — from a worker's point of
// view the task already succeeded the moment it was handed to the
// batcher, so a flush failure must never silently drop work, only delay
// it (and eventually surface as ErrBatchAtCapacity if the store keeps
// failing). Caller must hold b.mu.
func (b *Batcher) flushLocked(ctx context.Context) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.ops) == 0 {
		return
	}

	var docs []*store.Document
	var deleteIDs []string
	for _, op := range b.ops {
		if op.doc != nil {
			docs = append(docs, op.doc)
		} else {
			deleteIDs = append(deleteIDs, op.docID)
		}
	}

	indexFailed := false
	if len(docs) > 0 {
		if err := b.store.Index(ctx, docs); err != nil {
			slog.Error("batch index flush failed", slog.Int("count", len(docs)), slog.String("error", err.Error()))
			indexFailed = true
		}
	}
	deleteFailed := false
	if len(deleteIDs) > 0 {
		if err := b.store.Delete(ctx, deleteIDs); err != nil {
			slog.Error("batch delete flush failed", slog.Int("count", len(deleteIDs)), slog.String("error", err.Error()))
			deleteFailed = true
		}
	}

	if !indexFailed && !deleteFailed {
		b.ops = b.ops[:0]
		return
	}
	remaining := b.ops[:0]
	for _, op := range b.ops {
		if (op.doc != nil && indexFailed) || (op.doc == nil && deleteFailed) {
			remaining = append(remaining, op)
		}
	}
	b.ops = remaining
}

// Flush forces an immediate flush of any buffered operations.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked(ctx)
}

// Close performs a final flush bounded by DefaultShutdownFlushTimeout.
func (b *Batcher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownFlushTimeout)
	defer cancel()
	b.Flush(ctx)
}

// Pending returns the number of currently buffered operations, for
// tests and diagnostics.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}
