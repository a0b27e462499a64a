// Package ranker computes a final relevance score for search hits from
// five weighted, independently normalized components: lexical score,
// recency, access frequency, path classification, and file size. It
// generalizes internal/search's RRF fusion (a rank-based combiner of
// two sources) to a weighted-sum combiner of five heterogeneous
// signals, only one of which is itself a search-engine score.
package ranker

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Weights are the five component weights, each applied to a component
// already normalized to [0,1]. Defaults sum to 1.0.
type Weights struct {
	Lexical   float64
	Recency   float64
	Frequency float64
	PathClass float64
	Size      float64
}

// DefaultWeights returns the default weighting.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.50, Recency: 0.15, Frequency: 0.15, PathClass: 0.15, Size: 0.05}
}

// Config tunes the non-lexical components.
type Config struct {
	Weights Weights

	// RecencyHalfLife is the half-life used by the recency component.
	// <= 0 uses DefaultRecencyHalfLife.
	RecencyHalfLife time.Duration

	// MinAccessCount is the access-count floor below which the
	// frequency component is zero. <= 0 uses DefaultMinAccessCount.
	MinAccessCount int

	// OptimalSizeMin/Max bound the size component's full-score range.
	// <= 0 uses DefaultOptimalSizeMin/Max.
	OptimalSizeMin int64
	OptimalSizeMax int64
}

const (
	DefaultRecencyHalfLife = 30 * 24 * time.Hour
	DefaultMinAccessCount  = 2
	DefaultOptimalSizeMin  = 1024         // 1 KiB
	DefaultOptimalSizeMax  = 100 * 1024   // 100 KiB
)

// DefaultConfig returns sensible defaults for every field.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		RecencyHalfLife: DefaultRecencyHalfLife,
		MinAccessCount:  DefaultMinAccessCount,
		OptimalSizeMin:  DefaultOptimalSizeMin,
		OptimalSizeMax:  DefaultOptimalSizeMax,
	}
}

func (c Config) withDefaults() Config {
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = DefaultRecencyHalfLife
	}
	if c.MinAccessCount <= 0 {
		c.MinAccessCount = DefaultMinAccessCount
	}
	if c.OptimalSizeMin <= 0 {
		c.OptimalSizeMin = DefaultOptimalSizeMin
	}
	if c.OptimalSizeMax <= 0 {
		c.OptimalSizeMax = DefaultOptimalSizeMax
	}
	return c
}

// Hit is one candidate for ranking: the caller supplies whatever a
// search backend already produced (DocID, LexicalScore) plus the file
// metadata the backend doesn't carry (Path, Size, ModTime) so the
// ranker never has to look anything up itself — keeping Rank a pure
// function of its arguments, as determinism requires.
type Hit struct {
	DocID        string
	LexicalScore float64 // already normalized to [0,1] by the caller
	MatchedTerms []string
	Path         string
	Size         int64
	ModTime      time.Time
}

// Components holds each normalized component score (pre-weight), for
// callers that want to explain a ranking.
type Components struct {
	Lexical   float64
	Recency   float64
	Frequency float64
	PathClass float64
	Size      float64
}

// RankedHit is a Hit with its final weighted score and component
// breakdown attached.
type RankedHit struct {
	Hit
	Score      float64
	Components Components
}

// Ranker scores SearchHits deterministically given its Config, the
// current BehaviorTracker state, and the input hits.
type Ranker struct {
	cfg     Config
	tracker *BehaviorTracker
}

// New creates a Ranker. tracker may be nil, in which case the frequency
// component always contributes zero.
func New(cfg Config, tracker *BehaviorTracker) *Ranker {
	return &Ranker{cfg: cfg.withDefaults(), tracker: tracker}
}

// Rank scores and sorts hits, highest score first. Ties break on DocID
// ascending, the same deterministic tie-break shape RRF fusion uses.
func (r *Ranker) Rank(hits []Hit, now time.Time) []*RankedHit {
	ranked := make([]*RankedHit, len(hits))
	for i, h := range hits {
		comp := Components{
			Lexical:   clamp01(h.LexicalScore),
			Recency:   r.recencyScore(h.ModTime, now),
			Frequency: r.frequencyScore(h.Path),
			PathClass: r.pathClassScore(h.Path),
			Size:      r.sizeScore(h.Size),
		}
		score := r.cfg.Weights.Lexical*comp.Lexical +
			r.cfg.Weights.Recency*comp.Recency +
			r.cfg.Weights.Frequency*comp.Frequency +
			r.cfg.Weights.PathClass*comp.PathClass +
			r.cfg.Weights.Size*comp.Size

		ranked[i] = &RankedHit{Hit: h, Score: score, Components: comp}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocID < ranked[j].DocID
	})
	return ranked
}

// RecordAccess notes a path access for the frequency component, if a
// tracker is configured.
func (r *Ranker) RecordAccess(path string, at time.Time) {
	r.tracker.Record(path, at)
}

func (r *Ranker) recencyScore(modTime, now time.Time) float64 {
	if modTime.IsZero() {
		return 0
	}
	days := now.Sub(modTime).Hours() / 24
	if days < 0 {
		days = 0
	}
	halfLifeDays := r.cfg.RecencyHalfLife.Hours() / 24
	return math.Pow(0.5, days/halfLifeDays)
}

func (r *Ranker) frequencyScore(path string) float64 {
	count := r.tracker.AccessCount(path)
	if count < r.cfg.MinAccessCount {
		return 0
	}
	floor := r.cfg.MinAccessCount
	return clamp01(math.Log(float64(count-floor+2)) / 5)
}

func (r *Ranker) pathClassScore(path string) float64 {
	class := ClassifyPath(path)
	base := classScores[class]
	depth := strings.Count(strings.Trim(path, "/"), "/")
	penalty := math.Max(0.7, 1-0.02*float64(depth))
	return clamp01(base * penalty)
}

func (r *Ranker) sizeScore(size int64) float64 {
	optMin, optMax := r.cfg.OptimalSizeMin, r.cfg.OptimalSizeMax
	switch {
	case size <= 0:
		return 0.3
	case size >= optMin && size <= optMax:
		return 1.0
	case size < optMin:
		frac := float64(size) / float64(optMin)
		return clamp01(0.3 + 0.7*frac)
	default:
		ratio := float64(size) / float64(optMax)
		decay := 1.0 / (1.0 + math.Log(ratio))
		if decay < 0.3 {
			decay = 0.3
		}
		return clamp01(decay)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
