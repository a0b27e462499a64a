package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
)

// DefaultMaxDirectoryDepth bounds how deep a traversal descends from its
// root before a subtree is abandoned rather than walked further.
const DefaultMaxDirectoryDepth = 1000

// DefaultMaxSymlinkDepth bounds how many symlinks may be followed along a
// single path before that branch is abandoned, independent of directory
// depth, so a short chain of symlinks pointing at ever-deeper real
// directories cannot be used to bypass DefaultMaxDirectoryDepth.
const DefaultMaxSymlinkDepth = 8

// workItem is one directory queued for expansion.
type workItem struct {
	absDir       string
	relDir       string // path relative to the project root, already remapped for submodules/subtrees
	depth        int
	symlinkDepth int
}

// dirQueue is an unbounded, mutex-guarded FIFO of pending directories. It
// closes itself once every pushed item has been both popped and fully
// processed (no worker has any outstanding children left to push) — the
// standard "pending counter" shutdown pattern for a dynamic work queue
// where the total amount of work isn't known up front.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []workItem
	pending int
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues an item. Must be balanced by exactly one done() call once
// the item (and everything it spawned) has been fully handled.
func (q *dirQueue) push(item workItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.pending++
	q.cond.Signal()
	q.mu.Unlock()
}

// pop blocks until an item is available or the queue has drained and
// closed, in which case ok is false.
func (q *dirQueue) pop() (workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return workItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// done marks one previously pushed item as fully processed. Once the
// pending count reaches zero the queue is closed and every blocked pop
// wakes up.
func (q *dirQueue) done() {
	q.mu.Lock()
	q.pending--
	if q.pending == 0 {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// abort force-closes the queue, used on context cancellation so idle
// workers stop waiting immediately instead of for the natural drain.
func (q *dirQueue) abort() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// visitKey identifies a directory by device+inode, used to detect symlink
// cycles that a pure path check cannot catch (two different paths can
// resolve to the same directory).
type visitKey struct {
	dev, ino uint64
}

func statKey(info os.FileInfo) (visitKey, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return visitKey{}, false
	}
	return visitKey{dev: uint64(st.Dev), ino: st.Ino}, true
}

// engine walks a directory tree with a bounded worker pool, producing
// ScanResults for every file that survives the exclude/gitignore/size/
// binary checks. One engine instance serves exactly one Scan call.
type engine struct {
	scanner     *Scanner
	opts        *ScanOptions
	maxFileSize int64
	results     chan<- ScanResult
	absRoot     string // filesystem root actually walked
	remap       func(relFromWalkRoot string) string

	queue       *dirQueue
	visited     sync.Map // visitKey -> struct{}, guards against symlink cycles
	maxDepth    int
	maxSymDepth int
}

// run drives the worker pool until the queue drains or ctx is cancelled.
func (e *engine) run(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}

	e.queue.push(workItem{absDir: e.absRoot, relDir: "", depth: 0, symlinkDepth: 0})

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			e.worker(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.queue.abort()
		<-done
	}
}

func (e *engine) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, ok := e.queue.pop()
		if !ok {
			return
		}
		e.processDir(ctx, item)
		e.queue.done()
	}
}

func (e *engine) processDir(ctx context.Context, item workItem) {
	entries, err := os.ReadDir(item.absDir)
	if err != nil {
		select {
		case e.results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		name := entry.Name()
		absPath := filepath.Join(item.absDir, name)
		relPath := name
		if item.relDir != "" {
			relPath = filepath.Join(item.relDir, name)
		}
		mappedRel := e.remap(relPath)

		isSymlink := entry.Type()&fs.ModeSymlink != 0
		symDepth := item.symlinkDepth

		if isSymlink {
			if !e.opts.FollowSymlinks {
				continue
			}
			symDepth++
			if symDepth > e.maxSymDepth {
				slog.Warn("symlink depth exceeded, skipping",
					slog.String("path", mappedRel), slog.Int("limit", e.maxSymDepth))
				continue
			}
		}

		info, err := os.Stat(absPath) // follows symlinks
		if err != nil {
			continue
		}

		if info.IsDir() {
			if e.scanner.shouldExcludeDir(mappedRel, e.opts) {
				continue
			}
			if name == ".git" {
				continue
			}

			nextDepth := item.depth + 1
			if nextDepth > e.maxDepth {
				slog.Warn("directory depth exceeded, skipping",
					slog.String("path", mappedRel), slog.Int("limit", e.maxDepth))
				continue
			}

			if isSymlink {
				if key, ok := statKey(info); ok {
					if _, seen := e.visited.LoadOrStore(key, struct{}{}); seen {
						slog.Debug("symlink cycle detected, skipping", slog.String("path", mappedRel))
						continue
					}
				}
			}

			e.queue.push(workItem{
				absDir:       absPath,
				relDir:       relPath,
				depth:        nextDepth,
				symlinkDepth: symDepth,
			})
			continue
		}

		e.emitFile(ctx, mappedRel, absPath, info)
	}
}

func (e *engine) emitFile(ctx context.Context, relPath, absPath string, info os.FileInfo) {
	if e.scanner.shouldExcludeFile(relPath, e.absRoot, e.opts) {
		return
	}
	if info.Size() > e.maxFileSize {
		return
	}
	if e.scanner.isBinaryFile(absPath) {
		return
	}
	if len(e.opts.IncludePatterns) > 0 && !e.scanner.matchesAnyPattern(relPath, e.opts.IncludePatterns) {
		return
	}

	language := DetectLanguage(relPath)
	fileInfo := &FileInfo{
		Path:        relPath,
		AbsPath:     absPath,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: DetectContentType(language),
		Language:    language,
		IsGenerated: e.scanner.isGeneratedFile(absPath),
	}

	select {
	case e.results <- ScanResult{File: fileInfo}:
	case <-ctx.Done():
	}
}

// walkParallel walks absRoot with a bounded worker pool and emits results
// on the results channel, applying remap to every path relative to
// absRoot before it is used for pattern matching or FileInfo.Path (used
// to rebase submodule and subtree scans onto project-root-relative
// paths). The Scanner's circuit breaker gates the call: after
// maxFailures consecutive timeouts the walk is refused outright until
// resetTimeout elapses, rather than hammering an unreachable filesystem
// (e.g. a stale network mount) on every request.
func (s *Scanner) walkParallel(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult, remap func(string) string) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}
	if workers > 50 {
		workers = 50
	}

	maxDepth := opts.MaxDirectoryDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDirectoryDepth
	}
	maxSymDepth := opts.MaxSymlinkDepth
	if maxSymDepth <= 0 {
		maxSymDepth = DefaultMaxSymlinkDepth
	}

	scanTimeout := opts.ScanTimeout
	if scanTimeout <= 0 {
		scanTimeout = 5 * time.Minute
	}

	breakErr := s.breaker.Execute(func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, scanTimeout)
		defer cancel()

		e := &engine{
			scanner:     s,
			opts:        opts,
			maxFileSize: maxFileSize,
			results:     results,
			absRoot:     absRoot,
			remap:       remap,
			queue:       newDirQueue(),
			maxDepth:    maxDepth,
			maxSymDepth: maxSymDepth,
		}
		e.run(timeoutCtx, workers)

		if timeoutCtx.Err() == context.DeadlineExceeded {
			return amanerrors.IndexingError(amanerrors.ErrCodeScanTimeout, "scan exceeded timeout", timeoutCtx.Err())
		}
		return nil
	})

	if breakErr != nil {
		slog.Warn("scan aborted", slog.String("root", absRoot), slog.String("error", breakErr.Error()))
	}
}

func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
