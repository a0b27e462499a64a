package store

import (
	"context"
	"errors"
	"strings"
)

// QueryForm is the translated shape of a search_content/search_file_paths
// query, chosen from the raw query string and the caller's is_pattern
// flag.
type QueryForm int

const (
	// FormTerm is a plain tokenized term query.
	FormTerm QueryForm = iota
	// FormPrefix matches documents whose term starts with Pattern
	// ("term*" or pattern-mode "term%").
	FormPrefix
	// FormContains is a phrase/substring match ("%term%" pattern mode).
	FormContains
	// FormRegex is a full regular-expression match, either from glob
	// wildcards (*, ?) or an explicit pattern.
	FormRegex
)

func (f QueryForm) String() string {
	switch f {
	case FormTerm:
		return "term"
	case FormPrefix:
		return "prefix"
	case FormContains:
		return "contains"
	case FormRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// QueryPlan is the result of translating a raw query into the form an
// index backend should execute it as.
type QueryPlan struct {
	Form    QueryForm
	Pattern string // cleaned query text, ready for the chosen form
}

// ErrEmptyQuery is returned when the raw query is empty after trimming.
var ErrEmptyQuery = errors.New("store: empty query")

// TranslateQuery maps a raw query string onto the translation table:
// a bare term with no wildcards stays a term query; a trailing "*"
// (non-pattern mode) becomes a prefix query; pattern-mode "%term%"
// becomes a contains query and "term%" a prefix query; any query
// containing glob wildcards ("*"/"?") in a shape not covered above, or
// explicitly flagged as a regex, becomes a regex query.
func TranslateQuery(raw string, isPattern bool) (QueryPlan, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return QueryPlan{}, ErrEmptyQuery
	}

	if isPattern {
		if strings.HasPrefix(trimmed, "%") && strings.HasSuffix(trimmed, "%") && len(trimmed) > 1 {
			return QueryPlan{Form: FormContains, Pattern: strings.Trim(trimmed, "%")}, nil
		}
		if strings.HasSuffix(trimmed, "%") && !strings.HasPrefix(trimmed, "%") {
			return QueryPlan{Form: FormPrefix, Pattern: strings.TrimSuffix(trimmed, "%")}, nil
		}
		if containsGlob(trimmed) {
			return QueryPlan{Form: FormRegex, Pattern: globToRegex(trimmed)}, nil
		}
		// Explicit regex: the caller already hands us regex syntax.
		return QueryPlan{Form: FormRegex, Pattern: trimmed}, nil
	}

	if strings.HasSuffix(trimmed, "*") && strings.Count(trimmed, "*") == 1 && !strings.HasPrefix(trimmed, "*") {
		return QueryPlan{Form: FormPrefix, Pattern: strings.TrimSuffix(trimmed, "*")}, nil
	}
	if containsGlob(trimmed) {
		return QueryPlan{Form: FormRegex, Pattern: globToRegex(trimmed)}, nil
	}
	return QueryPlan{Form: FormTerm, Pattern: trimmed}, nil
}

func containsGlob(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// globToRegex expands shell-style "*"/"?" wildcards into an anchored
// regular expression, escaping every other regex metacharacter so the
// glob's literal characters can't accidentally change the pattern's
// meaning.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('$')
	return b.String()
}

// SearchHit is a single scored match returned by a content search. Line
// and Snippet are populated only for line-oriented forms (contains,
// regex); MatchedTerms only for term/prefix forms scored by BM25.
type SearchHit struct {
	DocID        string
	Score        float64
	MatchedTerms []string
	Line         int
	Snippet      string
}

// PatternSearcher executes contains/regex forms against a document's raw
// content. A BM25 postings list discards exact text once tokenized, so
// phrase and regex matching need a separate backend that still has the
// original bytes (e.g. a ripgrep/grep-backed scan, see the degradation
// coordinator).
type PatternSearcher interface {
	SearchPattern(ctx context.Context, pattern string, form QueryForm, limit int) ([]*SearchHit, error)
}

// ErrPatternSearchUnavailable is returned when a query translates to a
// contains/regex form but no PatternSearcher was configured.
var ErrPatternSearchUnavailable = errors.New("store: pattern search unavailable")

// ContentSearcher implements the search_content contract: term and
// prefix forms are served by a BM25Index, contains and regex forms by a
// PatternSearcher, after the pattern clears ValidatePattern.
type ContentSearcher struct {
	terms   BM25Index
	pattern PatternSearcher
}

// NewContentSearcher creates a ContentSearcher. pattern may be nil; in
// that case contains/regex queries return ErrPatternSearchUnavailable
// rather than panicking.
func NewContentSearcher(terms BM25Index, pattern PatternSearcher) *ContentSearcher {
	return &ContentSearcher{terms: terms, pattern: pattern}
}

// Search translates query and dispatches it to the appropriate backend.
// An unsafe pattern is rejected by returning an empty result, never an
// error that might tempt a caller into falling back to executing it
// unsafely elsewhere.
func (s *ContentSearcher) Search(ctx context.Context, query string, isPattern bool, limit int) ([]*SearchHit, error) {
	plan, err := TranslateQuery(query, isPattern)
	if err != nil {
		return nil, err
	}

	switch plan.Form {
	case FormContains, FormRegex:
		if err := ValidatePattern(plan.Pattern); err != nil {
			return []*SearchHit{}, nil
		}
		if s.pattern == nil {
			return nil, ErrPatternSearchUnavailable
		}
		return s.pattern.SearchPattern(ctx, plan.Pattern, plan.Form, limit)
	default:
		results, err := s.terms.Search(ctx, plan.Pattern, limit)
		if err != nil {
			return nil, err
		}
		hits := make([]*SearchHit, len(results))
		for i, r := range results {
			hits[i] = &SearchHit{DocID: r.DocID, Score: r.Score, MatchedTerms: r.MatchedTerms}
		}
		return hits, nil
	}
}
