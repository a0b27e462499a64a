package ranker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_HigherLexicalScoreRanksFirstAllElseEqual(t *testing.T) {
	r := New(DefaultConfig(), nil)
	now := time.Unix(1_700_000_000, 0)
	hits := []Hit{
		{DocID: "low", LexicalScore: 0.2, Path: "a.go", Size: 2048, ModTime: now},
		{DocID: "high", LexicalScore: 0.9, Path: "b.go", Size: 2048, ModTime: now},
	}

	ranked := r.Rank(hits, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].DocID)
	assert.Equal(t, "low", ranked[1].DocID)
}

func TestRank_TieBreaksOnDocIDAscending(t *testing.T) {
	r := New(DefaultConfig(), nil)
	now := time.Unix(1_700_000_000, 0)
	hits := []Hit{
		{DocID: "zebra", LexicalScore: 0.5, Path: "a.go", Size: 2048, ModTime: now},
		{DocID: "apple", LexicalScore: 0.5, Path: "a.go", Size: 2048, ModTime: now},
	}

	ranked := r.Rank(hits, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "apple", ranked[0].DocID)
	assert.Equal(t, "zebra", ranked[1].DocID)
}

func TestRank_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	r := New(DefaultConfig(), NewBehaviorTracker(10))
	now := time.Unix(1_700_000_000, 0)
	hits := []Hit{
		{DocID: "a", LexicalScore: 0.7, Path: "internal/foo.go", Size: 4096, ModTime: now.Add(-24 * time.Hour)},
		{DocID: "b", LexicalScore: 0.6, Path: "vendor/bar.go", Size: 4096, ModTime: now},
	}

	first := r.Rank(hits, now)
	second := r.Rank(hits, now)
	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].DocID, second[i].DocID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestRecencyScore_NewerFileScoresHigher(t *testing.T) {
	r := New(DefaultConfig(), nil)
	now := time.Unix(1_700_000_000, 0)
	fresh := r.recencyScore(now, now)
	stale := r.recencyScore(now.Add(-60*24*time.Hour), now)
	assert.Greater(t, fresh, stale)
	assert.InDelta(t, 1.0, fresh, 0.001)
}

func TestRecencyScore_ZeroModTimeScoresZero(t *testing.T) {
	r := New(DefaultConfig(), nil)
	assert.Equal(t, 0.0, r.recencyScore(time.Time{}, time.Now()))
}

func TestFrequencyScore_BelowMinAccessCountIsZero(t *testing.T) {
	tracker := NewBehaviorTracker(10)
	now := time.Now()
	tracker.Record("a.go", now)
	r := New(DefaultConfig(), tracker)

	assert.Equal(t, 0.0, r.frequencyScore("a.go"))
}

func TestFrequencyScore_NilTrackerIsZero(t *testing.T) {
	r := New(DefaultConfig(), nil)
	assert.Equal(t, 0.0, r.frequencyScore("a.go"))
}

func TestFrequencyScore_AboveMinIncreasesWithCount(t *testing.T) {
	tracker := NewBehaviorTracker(50)
	now := time.Now()
	for i := 0; i < 3; i++ {
		tracker.Record("a.go", now)
	}
	for i := 0; i < 10; i++ {
		tracker.Record("b.go", now)
	}
	r := New(DefaultConfig(), tracker)

	assert.Greater(t, r.frequencyScore("b.go"), r.frequencyScore("a.go"))
}

func TestPathClassScore_DeeperPathsArePenalized(t *testing.T) {
	r := New(DefaultConfig(), nil)
	shallow := r.pathClassScore("main.go")
	deep := r.pathClassScore("a/b/c/d/e/f/g/h/main.go")
	assert.Greater(t, shallow, deep)
}

func TestSizeScore_WithinOptimalRangeIsMax(t *testing.T) {
	r := New(DefaultConfig(), nil)
	assert.Equal(t, 1.0, r.sizeScore(50*1024))
}

func TestSizeScore_EmptyFileIsFloor(t *testing.T) {
	r := New(DefaultConfig(), nil)
	assert.Equal(t, 0.3, r.sizeScore(0))
}

func TestSizeScore_TinyFileScoresBetweenFloorAndMax(t *testing.T) {
	r := New(DefaultConfig(), nil)
	score := r.sizeScore(100)
	assert.Greater(t, score, 0.3)
	assert.Less(t, score, 1.0)
}

func TestSizeScore_HugeFileDecaysButFloorsAtPoint3(t *testing.T) {
	r := New(DefaultConfig(), nil)
	score := r.sizeScore(500 * 1024 * 1024)
	assert.GreaterOrEqual(t, score, 0.3)
	assert.Less(t, score, 1.0)
}
