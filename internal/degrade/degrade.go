// Package degrade implements the search-backend preference chain: the
// primary full-text engine, a vector/semantic backend, a ripgrep
// subprocess, and a POSIX grep subprocess, tried in that order behind
// independent circuit breakers. A query against an unhealthy project
// is skipped rather than failing the whole call, and a backend failure
// transparently retries the same query one tier down.
package degrade

import (
	"context"
	"log/slog"
	"os"
	"time"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
)

// Level reports which tier of the preference chain actually served a
// query. The zero value, LevelNone, is never a successful outcome.
type Level int

const (
	LevelNone Level = iota
	LevelAllDown
	LevelLexicalDown
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "full"
	case LevelLexicalDown:
		return "lexical_down"
	case LevelAllDown:
		return "all_down"
	default:
		return "none"
	}
}

// Hit is one match returned by any backend in the chain, normalized to
// a shape every tier (FTS, vector, ripgrep, grep) can fill in.
type Hit struct {
	Path    string
	Line    int
	Snippet string
	Score   float64
}

// Backend is one tier of the preference chain.
type Backend interface {
	// Name identifies the backend for logging and BackendUsed.
	Name() string
	// Level is the chain tier this backend represents when healthy.
	Level() Level
	// Search runs pattern against project rooted at projectPath.
	Search(ctx context.Context, projectPath, pattern string, limit int) ([]Hit, error)
}

// Result is the outcome of a coordinated search across every healthy
// project, reported at whichever level actually served it.
type Result struct {
	Results        []Hit
	Level          Level
	BackendUsed    string
	ProjectsSkipped []string
	FallbackReason string
	Err            error
}

// Options configures one Execute call.
type Options struct {
	Limit int
}

// Coordinator holds the ordered backend chain, each gated by its own
// circuit breaker so one tier's outage doesn't retry into the same
// failure on every call.
type Coordinator struct {
	backends []Backend
	breakers map[string]*amanerrors.CircuitBreaker
	logger   *slog.Logger
}

// New builds a Coordinator over backends, which must already be in
// preference order (highest level first). Each backend gets its own
// circuit breaker with the given failure threshold and reset timeout.
func New(backends []Backend, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	breakers := make(map[string]*amanerrors.CircuitBreaker, len(backends))
	for _, b := range backends {
		breakers[b.Name()] = amanerrors.NewCircuitBreaker(
			b.Name(),
			amanerrors.WithMaxFailures(maxFailures),
			amanerrors.WithResetTimeout(resetTimeout),
		)
	}
	return &Coordinator{backends: backends, breakers: breakers, logger: logger}
}

// ProjectHealth reports whether projectPath can be searched at all.
// A project fails health if its path is missing, not a directory, or
// not readable/listable — any of which exclude it from the operation
// rather than failing the whole call.
func ProjectHealth(projectPath string) error {
	info, err := os.Stat(projectPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return amanerrors.New(amanerrors.ErrCodeInvalidPath, "project path is not a directory", nil)
	}
	if _, err := os.ReadDir(projectPath); err != nil {
		return err
	}
	return nil
}

// Execute runs pattern against every healthy project in projectPaths,
// walking the backend chain from the highest preference down until one
// tier succeeds. It makes at most one pass through the chain per call;
// it never recurses back to a higher tier once it has fallen.
func (c *Coordinator) Execute(ctx context.Context, pattern string, projectPaths []string, opts Options) *Result {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	healthy := make([]string, 0, len(projectPaths))
	skipped := make([]string, 0)
	for _, p := range projectPaths {
		if err := ProjectHealth(p); err != nil {
			c.logger.Warn("project unhealthy, excluding from search",
				"component", "degrade", "action", "project_health",
				"path", p, "error", err.Error())
			skipped = append(skipped, p)
			continue
		}
		healthy = append(healthy, p)
	}

	if len(healthy) == 0 {
		return &Result{
			Level:           LevelNone,
			ProjectsSkipped: skipped,
			Err:             amanerrors.New(amanerrors.ErrCodeAllBackendsDown, "no healthy projects", nil),
		}
	}

	var lastReason string
	for _, backend := range c.backends {
		cb := c.breakers[backend.Name()]
		if cb != nil && !cb.Allow() {
			lastReason = backend.Name() + " circuit open"
			continue
		}

		var allHits []Hit
		failed := false
		for _, p := range healthy {
			hits, err := backend.Search(ctx, p, pattern, limit)
			if err != nil {
				c.logger.Warn("backend search failed, falling back",
					"component", "degrade", "action", "backend_failure",
					"backend", backend.Name(), "project", p, "error", err.Error())
				if cb != nil {
					cb.RecordFailure()
				}
				lastReason = backend.Name() + ": " + err.Error()
				failed = true
				break
			}
			allHits = append(allHits, hits...)
		}
		if failed {
			continue
		}
		if cb != nil {
			cb.RecordSuccess()
		}

		level := backend.Level()
		reason := ""
		if level != LevelFull {
			reason = lastReason
		}
		return &Result{
			Results:         allHits,
			Level:           level,
			BackendUsed:     backend.Name(),
			ProjectsSkipped: skipped,
			FallbackReason:  reason,
		}
	}

	return &Result{
		Level:           LevelNone,
		ProjectsSkipped: skipped,
		FallbackReason:  lastReason,
		Err:             amanerrors.New(amanerrors.ErrCodeAllBackendsDown, "all backends unavailable", nil),
	}
}
