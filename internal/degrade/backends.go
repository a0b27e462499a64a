package degrade

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/embed"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// FTSBackend wraps the primary full-text engine. It is always the
// first entry in a Coordinator's chain.
type FTSBackend struct {
	search *store.ContentSearcher
}

// NewFTSBackend adapts an already-constructed ContentSearcher.
func NewFTSBackend(search *store.ContentSearcher) *FTSBackend {
	return &FTSBackend{search: search}
}

func (b *FTSBackend) Name() string  { return "fts" }
func (b *FTSBackend) Level() Level  { return LevelFull }

// Search ignores projectPath: the full-text engine is already scoped
// to its index, not to a filesystem tree the way the process-based
// fallbacks are.
func (b *FTSBackend) Search(ctx context.Context, projectPath, pattern string, limit int) ([]Hit, error) {
	results, err := b.search.Search(ctx, pattern, looksLikePattern(pattern), limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Path: r.DocID, Line: r.Line, Snippet: r.Snippet, Score: r.Score}
	}
	return hits, nil
}

func looksLikePattern(s string) bool {
	return strings.ContainsAny(s, "*?%")
}

// VectorBackend wraps a semantic/vector index behind the same
// pattern-string interface the other tiers use, embedding the query
// text on the fly.
type VectorBackend struct {
	embedder embed.Embedder
	index    store.VectorStore
	docPath  func(id string) string
}

// NewVectorBackend adapts a VectorStore plus the embedder used to
// build its vectors. docPath resolves a stored vector ID back to a
// filesystem path for Hit.Path; if nil, the ID is used verbatim.
func NewVectorBackend(embedder embed.Embedder, index store.VectorStore, docPath func(id string) string) *VectorBackend {
	if docPath == nil {
		docPath = func(id string) string { return id }
	}
	return &VectorBackend{embedder: embedder, index: index, docPath: docPath}
}

func (b *VectorBackend) Name() string { return "vector" }
func (b *VectorBackend) Level() Level { return LevelLexicalDown }

func (b *VectorBackend) Search(ctx context.Context, projectPath, pattern string, limit int) ([]Hit, error) {
	vec, err := b.embedder.Embed(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("degrade: embedding query for vector fallback: %w", err)
	}
	results, err := b.index.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Path: b.docPath(r.ID), Score: float64(r.Score)}
	}
	return hits, nil
}

// processRunner abstracts exec.CommandContext for testing, the same
// injected-constructor shape lifecycle.OllamaManager uses for its own
// subprocess calls.
type processRunner func(ctx context.Context, name string, args ...string) *exec.Cmd

// RipgrepBackend shells out to a ripgrep binary. The pattern is always
// passed as a distinct argv entry, never interpolated into a command
// string, and must already have passed store.ValidateSubprocessPattern.
type RipgrepBackend struct {
	binary string
	run    processRunner
}

// NewRipgrepBackend looks for binary ("rg" by default) via the
// standard PATH lookup semantics of exec.Command.
func NewRipgrepBackend(binary string) *RipgrepBackend {
	if binary == "" {
		binary = "rg"
	}
	return &RipgrepBackend{binary: binary, run: exec.CommandContext}
}

func (b *RipgrepBackend) Name() string { return "ripgrep" }
func (b *RipgrepBackend) Level() Level { return LevelAllDown }

func (b *RipgrepBackend) Search(ctx context.Context, projectPath, pattern string, limit int) ([]Hit, error) {
	if err := store.ValidateSubprocessPattern(pattern); err != nil {
		return nil, fmt.Errorf("degrade: pattern rejected before ripgrep: %w", err)
	}
	args := []string{"--line-number", "--no-heading", "--max-count", strconv.Itoa(limit), pattern, projectPath}
	cmd := b.run(ctx, b.binary, args...)
	return runLineMatcher(cmd, limit)
}

// GrepBackend shells out to POSIX grep, the last tier in the chain.
// Same argv-only discipline as RipgrepBackend.
type GrepBackend struct {
	binary string
	run    processRunner
}

// NewGrepBackend defaults to "grep".
func NewGrepBackend(binary string) *GrepBackend {
	if binary == "" {
		binary = "grep"
	}
	return &GrepBackend{binary: binary, run: exec.CommandContext}
}

func (b *GrepBackend) Name() string { return "grep" }
func (b *GrepBackend) Level() Level { return LevelAllDown }

func (b *GrepBackend) Search(ctx context.Context, projectPath, pattern string, limit int) ([]Hit, error) {
	if err := store.ValidateSubprocessPattern(pattern); err != nil {
		return nil, fmt.Errorf("degrade: pattern rejected before grep: %w", err)
	}
	args := []string{"-r", "-n", "-E", pattern, projectPath}
	cmd := b.run(ctx, b.binary, args...)
	return runLineMatcher(cmd, limit)
}

// runLineMatcher runs cmd, which is expected to produce
// "path:line:snippet" lines on stdout the way grep/ripgrep do, and
// converts the first limit lines into Hits. Exit status 1 (grep's "no
// matches found") is not an error; any other non-zero exit is.
func runLineMatcher(cmd *exec.Cmd, limit int) ([]Hit, error) {
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}

	var hits []Hit
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() && len(hits) < limit {
		parts := strings.SplitN(scanner.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		line, _ := strconv.Atoi(parts[1])
		hits = append(hits, Hit{Path: parts[0], Line: line, Snippet: parts[2]})
	}
	return hits, nil
}
