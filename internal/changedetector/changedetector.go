// Package changedetector classifies a scanner pass against previously
// persisted file metadata into added, modified, deleted, and unchanged
// sets, and computes content hashes for the paths that need one through
// a bounded parallel worker pool.
package changedetector

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanmcp/internal/scanner"
	"github.com/Aman-CERP/amanmcp/internal/statcache"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// ChangeType classifies how a scanned path relates to a project's
// persisted file set.
type ChangeType int

const (
	Unchanged ChangeType = iota
	Added
	Modified
	Deleted
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// Change describes one path's classification. Hash and ComputationTime
// are populated only for Added and Modified entries; HashErr carries a
// per-file hashing failure without aborting the rest of the batch.
type Change struct {
	Path            string
	Type            ChangeType
	Size            int64
	ModTime         time.Time
	Hash            string
	HashErr         error
	ComputationTime time.Duration
}

// Config tunes the parallel hash computer.
type Config struct {
	// HashWorkers bounds the hashing pool. Zero or negative uses
	// runtime.NumCPU().
	HashWorkers int
}

// Detector classifies scan results against a project's persisted file
// metadata and fills in content hashes for the changed set.
type Detector struct {
	cache   *statcache.Cache
	workers int
}

// New creates a Detector. cache provides the size/mtime fast path and
// the streamed hash computation used to fill in Added/Modified hashes.
func New(cache *statcache.Cache, cfg Config) *Detector {
	workers := cfg.HashWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Detector{cache: cache, workers: workers}
}

// Detect compares scanned against stored, a project's persisted file
// records keyed by relative path (as returned by
// store.MetadataStore.GetFilesForReconciliation). A path present in
// scanned but absent from stored is Added. A path present in both whose
// size and mtime both match is Unchanged, without touching its content.
// A size/mtime mismatch is Modified. A path present only in stored is
// Deleted. Added and Modified paths are hashed by a bounded worker pool
// sized by Config.HashWorkers; the returned slice carries one Change per
// input path plus one per deletion, independent of worker completion
// order.
func (d *Detector) Detect(ctx context.Context, scanned []*scanner.FileInfo, stored map[string]*store.File) ([]Change, error) {
	seen := make(map[string]bool, len(scanned))
	needsHash := make([]*scanner.FileInfo, 0, len(scanned))
	changes := make([]Change, 0, len(scanned)+len(stored))

	for _, f := range scanned {
		seen[f.Path] = true
		prev, ok := stored[f.Path]
		if ok && prev.Size == f.Size && prev.ModTime.Equal(f.ModTime) {
			changes = append(changes, Change{
				Path:    f.Path,
				Type:    Unchanged,
				Size:    f.Size,
				ModTime: f.ModTime,
				Hash:    prev.ContentHash,
			})
			continue
		}
		needsHash = append(needsHash, f)
	}

	for path, prev := range stored {
		if !seen[path] {
			changes = append(changes, Change{
				Path:    path,
				Type:    Deleted,
				Size:    prev.Size,
				ModTime: prev.ModTime,
				Hash:    prev.ContentHash,
			})
		}
	}

	hashed, err := d.computeHashes(ctx, needsHash)
	if err != nil {
		return nil, err
	}
	for _, f := range needsHash {
		ch := hashed[f.Path]
		if _, ok := stored[f.Path]; ok {
			ch.Type = Modified
		} else {
			ch.Type = Added
		}
		changes = append(changes, ch)
	}

	return changes, nil
}

// computeHashes hashes files through a worker pool bounded by
// d.workers, collecting results into a map keyed by path as each worker
// finishes and only reordering them back against the caller's input
// slice afterward — completion order is never assumed to match input
// order. A hashing failure for one file is recorded on its Change and
// never cancels the others.
func (d *Detector) computeHashes(ctx context.Context, files []*scanner.FileInfo) (map[string]Change, error) {
	results := make(map[string]Change, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			start := time.Now()
			ch := Change{Path: f.Path, Size: f.Size, ModTime: f.ModTime}

			rec, err := d.cache.ComputeAndStore(gctx, f.AbsPath)
			ch.ComputationTime = time.Since(start)
			if err != nil {
				ch.HashErr = err
			} else {
				ch.Hash = rec.Hash
				ch.Size = rec.Size
				ch.ModTime = rec.ModTime
			}

			mu.Lock()
			results[f.Path] = ch
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Confirm persists the observed size/mtime/hash for file after its
// content has been successfully indexed, keeping the persisted record
// in sync with what was last hashed. SaveFiles upserts atomically, so a
// retry after a crash mid-index can never leave a stale hash paired
// with a fresh mtime.
func (d *Detector) Confirm(ctx context.Context, ms store.MetadataStore, file *store.File) error {
	return ms.SaveFiles(ctx, []*store.File{file})
}
