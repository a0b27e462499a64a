// Package workerpool drains the priority queue (C5), extracts content,
// and writes documents to the indexed-document store, cooperating with
// the backpressure controller (C7) to shed low-priority work under
// load. Its worker lifecycle generalizes the single-background-task
// start/stop/wait pattern used elsewhere in this codebase to N
// concurrently running workers draining a shared queue.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/queue"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// DefaultWorkers is the default number of concurrent workers.
const DefaultWorkers = 4

// DefaultMaxTaskRetries bounds how many times a recoverable task
// failure is requeued before it's dropped.
const DefaultMaxTaskRetries = 3

// DefaultMaxExtractionRetries bounds how many times content extraction
// is retried, within a single worker turn, before the task is dropped.
const DefaultMaxExtractionRetries = 3

// popTimeout is how long a worker blocks on an empty queue before
// re-checking for shutdown.
const popTimeout = 200 * time.Millisecond

// Throttler reports whether the pool should currently shed Low
// priority work. *backpressure.Controller satisfies this.
type Throttler interface {
	ShouldThrottle() bool
}

// Config tunes a Pool.
type Config struct {
	// Workers is the number of concurrent worker goroutines. <= 0 uses
	// DefaultWorkers.
	Workers int
	// MaxTaskRetries bounds requeue attempts for a recoverable
	// failure. <= 0 uses DefaultMaxTaskRetries.
	MaxTaskRetries int
	// MaxExtractionRetries bounds extraction retry attempts. <= 0 uses
	// DefaultMaxExtractionRetries.
	MaxExtractionRetries int
	// BasePath is the project root every task's path is validated
	// against before extraction.
	BasePath string
	// BatchSize/BatchMax/BatchTimeout configure the batch indexer. Zero
	// values take the Batcher's own defaults.
	BatchSize    int
	BatchMax     int
	BatchTimeout time.Duration
	// DisableBatching writes every operation directly to Store instead
	// of coalescing through a Batcher.
	DisableBatching bool
}

// DocIDFunc derives the document ID for a task's path. Callers own ID
// derivation (it must match whatever scheme the metadata store already
// used for that file) so the pool never needs to know about projects.
type DocIDFunc func(task *queue.Task) string

// Pool runs Config.Workers goroutines draining q, writing extracted
// content to store via an optional Batcher.
type Pool struct {
	queue     *queue.Queue
	throttle  Throttler
	store     Indexer
	extractor Extractor
	docID     DocIDFunc
	batcher   *Batcher

	cfg Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Pool. extractor may be nil, in which case a bare
// ExtractorRegistry (plain-text fallback only) is used.
func New(q *queue.Queue, throttle Throttler, docStore Indexer, extractor Extractor, docID DocIDFunc, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxTaskRetries <= 0 {
		cfg.MaxTaskRetries = DefaultMaxTaskRetries
	}
	if cfg.MaxExtractionRetries <= 0 {
		cfg.MaxExtractionRetries = DefaultMaxExtractionRetries
	}
	if extractor == nil {
		extractor = NewExtractorRegistry()
	}

	p := &Pool{
		queue:     q,
		throttle:  throttle,
		store:     docStore,
		extractor: extractor,
		docID:     docID,
		cfg:       cfg,
	}
	if !cfg.DisableBatching {
		p.batcher = NewBatcher(docStore, cfg.BatchSize, cfg.BatchMax, cfg.BatchTimeout)
	}
	return p
}

// Start launches the worker goroutines. Calling Start on an
// already-running Pool is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}
	go func() {
		wg.Wait()
		close(p.doneCh)
	}()
}

// Stop signals every worker to exit its loop after its current task
// and waits for them to finish, flushing any pending batched
// operations first.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	doneCh := p.doneCh
	p.running = false
	p.mu.Unlock()

	<-doneCh
	if p.batcher != nil {
		p.batcher.Close()
	}
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, ok := p.queue.Pop(popTimeout)
		if !ok {
			continue
		}

		if task.Priority == queue.Low && p.throttle != nil && p.throttle.ShouldThrottle() {
			slog.Debug("dropping low-priority task under backpressure", slog.String("path", task.Path))
			continue
		}

		start := time.Now()
		outcome := p.process(ctx, task)
		latency := time.Since(start)

		if rec, ok := p.throttle.(interface {
			RecordLatency(time.Duration)
		}); ok {
			rec.RecordLatency(latency)
		}

		switch outcome {
		case outcomeSuccess, outcomePermanent, outcomeNonRecoverable:
			// Terminal: nothing further to do with this task.
		case outcomeRetryable:
			if task.RetryCount < p.cfg.MaxTaskRetries {
				task.RetryCount++
				p.queue.Push(task)
			} else {
				slog.Warn("dropping task after exhausting retries",
					slog.String("path", task.Path), slog.Int("retries", task.RetryCount))
			}
		}
	}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomePermanent
	outcomeNonRecoverable
	outcomeRetryable
)

// process dispatches task by op and classifies the resulting error
// (if any) into a disposition.
func (p *Pool) process(ctx context.Context, task *queue.Task) outcome {
	docID := ""
	if p.docID != nil {
		docID = p.docID(task)
	}

	if task.Op == queue.OpDelete {
		var err error
		if p.batcher != nil {
			err = p.batcher.AddDelete(ctx, docID)
		} else {
			err = p.store.Delete(ctx, []string{docID})
		}
		return classify(err)
	}

	absPath := task.Path
	if p.cfg.BasePath != "" {
		absPath = joinUnderBase(p.cfg.BasePath, task.Path)
		if !validateUnderBase(p.cfg.BasePath, absPath) {
			slog.Error("task path escapes base directory, dropping", slog.String("path", task.Path))
			return outcomePermanent
		}
	}

	content, err := p.extractWithRetry(ctx, absPath)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return outcomePermanent
		}
		return outcomeRetryable
	}

	doc := &store.Document{ID: docID, Content: content}
	if p.batcher != nil {
		err = p.batcher.AddIndex(ctx, docID, doc)
	} else {
		err = p.store.Index(ctx, []*store.Document{doc})
	}
	return classify(err)
}

// extractWithRetry makes one immediate extraction attempt; a
// not-exist/permission failure on that attempt returns right away
// (§4.6 treats these as permanent, never retried). Any other failure
// enters an exponential-backoff retry loop bounded by
// Config.MaxExtractionRetries.
func (p *Pool) extractWithRetry(ctx context.Context, absPath string) (string, error) {
	content, err := p.extractor.Extract(ctx, absPath)
	if err == nil {
		return content, nil
	}
	if os.IsNotExist(err) || os.IsPermission(err) {
		return "", err
	}

	cfg := amanerrors.RetryConfig{
		MaxRetries:   p.cfg.MaxExtractionRetries,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
	return amanerrors.RetryWithResult(ctx, cfg, func() (string, error) {
		return p.extractor.Extract(ctx, absPath)
	})
}

// classify maps a write-path error onto a task disposition. Permission
// and not-found conditions are permanent. Validation/Internal category
// AmanErrors stand in for the source system's non-recoverable
// programmer-error exceptions (ValueError, TypeError, AttributeError,
// IndexError, KeyError, NameError, ZeroDivisionError) — Go has no
// equivalent exception hierarchy to match against, so the existing
// error taxonomy's "this is a logic bug, not a transient condition"
// categories serve the same role. Everything else is retryable.
func classify(err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if os.IsNotExist(err) || os.IsPermission(err) {
		return outcomePermanent
	}
	var ae *amanerrors.AmanError
	if errors.As(err, &ae) {
		switch ae.Category {
		case amanerrors.CategoryValidation, amanerrors.CategoryInternal:
			return outcomeNonRecoverable
		}
	}
	return outcomeRetryable
}

// joinUnderBase joins base and a task's project-relative path.
func joinUnderBase(base, rel string) string {
	if rel == "" {
		return base
	}
	return filepath.Join(base, rel)
}
