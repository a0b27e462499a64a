package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateQuery_PlainTermNoWildcards(t *testing.T) {
	plan, err := TranslateQuery("hello", false)
	require.NoError(t, err)
	assert.Equal(t, FormTerm, plan.Form)
	assert.Equal(t, "hello", plan.Pattern)
}

func TestTranslateQuery_TrailingStarIsPrefix(t *testing.T) {
	plan, err := TranslateQuery("hel*", false)
	require.NoError(t, err)
	assert.Equal(t, FormPrefix, plan.Form)
	assert.Equal(t, "hel", plan.Pattern)
}

func TestTranslateQuery_PercentBothSidesIsContains(t *testing.T) {
	plan, err := TranslateQuery("%lo wor%", true)
	require.NoError(t, err)
	assert.Equal(t, FormContains, plan.Form)
	assert.Equal(t, "lo wor", plan.Pattern)
}

func TestTranslateQuery_TrailingPercentIsPrefix(t *testing.T) {
	plan, err := TranslateQuery("hel%", true)
	require.NoError(t, err)
	assert.Equal(t, FormPrefix, plan.Form)
	assert.Equal(t, "hel", plan.Pattern)
}

func TestTranslateQuery_GlobWildcardsBecomeRegex(t *testing.T) {
	plan, err := TranslateQuery("h?llo*world", true)
	require.NoError(t, err)
	assert.Equal(t, FormRegex, plan.Form)
	assert.Equal(t, "^h.llo.*world$", plan.Pattern)
}

func TestTranslateQuery_ExplicitRegexPassesThrough(t *testing.T) {
	plan, err := TranslateQuery("^foo(bar|baz)$", true)
	require.NoError(t, err)
	assert.Equal(t, FormRegex, plan.Form)
	assert.Equal(t, "^foo(bar|baz)$", plan.Pattern)
}

func TestTranslateQuery_EmptyQueryErrors(t *testing.T) {
	_, err := TranslateQuery("   ", false)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

type fakeBM25 struct {
	results []*BM25Result
	err     error
}

func (f *fakeBM25) Index(ctx context.Context, docs []*Document) error { return nil }
func (f *fakeBM25) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	return f.results, f.err
}
func (f *fakeBM25) Delete(ctx context.Context, docIDs []string) error { return nil }
func (f *fakeBM25) AllIDs() ([]string, error)                         { return nil, nil }
func (f *fakeBM25) Stats() *IndexStats                                { return &IndexStats{} }
func (f *fakeBM25) Save(path string) error                            { return nil }
func (f *fakeBM25) Load(path string) error                            { return nil }
func (f *fakeBM25) Close() error                                      { return nil }

type fakePatternSearcher struct {
	hits []*SearchHit
}

func (f *fakePatternSearcher) SearchPattern(ctx context.Context, pattern string, form QueryForm, limit int) ([]*SearchHit, error) {
	return f.hits, nil
}

func TestContentSearcher_TermQueryGoesToBM25(t *testing.T) {
	bm := &fakeBM25{results: []*BM25Result{{DocID: "a", Score: 1.5}}}
	s := NewContentSearcher(bm, nil)

	hits, err := s.Search(context.Background(), "hello", false, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].DocID)
}

func TestContentSearcher_RegexQueryGoesToPatternSearcher(t *testing.T) {
	bm := &fakeBM25{}
	ps := &fakePatternSearcher{hits: []*SearchHit{{DocID: "b", Line: 3}}}
	s := NewContentSearcher(bm, ps)

	hits, err := s.Search(context.Background(), "^foo.*bar$", true, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].DocID)
}

func TestContentSearcher_UnsafePatternReturnsEmptyNotError(t *testing.T) {
	bm := &fakeBM25{}
	ps := &fakePatternSearcher{hits: []*SearchHit{{DocID: "should-not-appear"}}}
	s := NewContentSearcher(bm, ps)

	hits, err := s.Search(context.Background(), "rm -rf $(whoami)", true, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestContentSearcher_MissingPatternSearcherErrors(t *testing.T) {
	bm := &fakeBM25{}
	s := NewContentSearcher(bm, nil)

	_, err := s.Search(context.Background(), "%foo%", true, 10)
	assert.ErrorIs(t, err, ErrPatternSearchUnavailable)
}
