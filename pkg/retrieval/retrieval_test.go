package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/document/documenttest"
	"github.com/barekit/docscope/pkg/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSelector map[string][]document.Document

func (s stubSelector) GetSelection(_ context.Context, user string) ([]document.Document, error) {
	return s[user], nil
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return e.vec, e.err
}

type failingRanker struct{}

func (failingRanker) Rank(context.Context, []float32, []document.Document, int) ([]Result, error) {
	return nil, errors.New("index unavailable")
}

func titles(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.Title
	}
	return out
}

func TestEngine_Ordering(t *testing.T) {
	scope := stubSelector{"alice": {
		{ID: "1", Title: "far", Embedding: documenttest.AtDistance(0.3, 0)},
		{ID: "2", Title: "near", Embedding: documenttest.AtDistance(0.1, 1)},
		{ID: "3", Title: "mid", Embedding: documenttest.AtDistance(0.2, 2)},
	}}
	engine := New(scope, &stubEmbedder{vec: documenttest.Unit(0)})

	results, err := engine.Retrieve(context.Background(), "alice", "question", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "mid", "far"}, titles(results))
	assert.InDelta(t, 0.1, results[0].Distance, 1e-6)
	assert.InDelta(t, 0.2, results[1].Distance, 1e-6)
	assert.InDelta(t, 0.3, results[2].Distance, 1e-6)
}

func TestEngine_TieBreakByID(t *testing.T) {
	same := documenttest.AtDistance(0.5, 3)
	scope := stubSelector{"alice": {
		{ID: "b", Title: "second", Embedding: same},
		{ID: "a", Title: "first", Embedding: same},
	}}
	engine := New(scope, &stubEmbedder{vec: documenttest.Unit(0)})

	results, err := engine.Retrieve(context.Background(), "alice", "question", DefaultK)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, titles(results))
}

func TestEngine_Truncation(t *testing.T) {
	scope := stubSelector{"alice": {
		{ID: "1", Title: "A", Embedding: documenttest.AtDistance(0.1, 0)},
		{ID: "2", Title: "B", Embedding: documenttest.AtDistance(0.2, 1)},
		{ID: "3", Title: "C", Embedding: documenttest.AtDistance(0.3, 2)},
	}}
	engine := New(scope, &stubEmbedder{vec: documenttest.Unit(0)})

	results, err := engine.Retrieve(context.Background(), "alice", "question", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(results))

	// k larger than the candidate set returns everything.
	results, err = engine.Retrieve(context.Background(), "alice", "question", 5)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestEngine_RespectsScope(t *testing.T) {
	scope := stubSelector{
		"alice": {
			{ID: "a", Title: "A", Embedding: documenttest.AtDistance(0.4, 0)},
			{ID: "b", Title: "B", Embedding: documenttest.AtDistance(0.5, 1)},
		},
		"bob": {
			{ID: "c", Title: "C", Embedding: documenttest.Unit(0)},
		},
	}
	engine := New(scope, &stubEmbedder{vec: documenttest.Unit(0)})

	results, err := engine.Retrieve(context.Background(), "alice", "question", DefaultK)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(results))
}

func TestEngine_SkipsDocumentsWithoutEmbedding(t *testing.T) {
	scope := stubSelector{"alice": {
		{ID: "a", Title: "A", Embedding: documenttest.AtDistance(0.2, 0)},
		{ID: "b", Title: "pending"},
	}}
	engine := New(scope, &stubEmbedder{vec: documenttest.Unit(0)})

	results, err := engine.Retrieve(context.Background(), "alice", "question", DefaultK)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(results))

	scope["alice"] = []document.Document{{ID: "b", Title: "pending"}}
	results, err = engine.Retrieve(context.Background(), "alice", "question", DefaultK)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_EmptyScope(t *testing.T) {
	embedder := &stubEmbedder{vec: documenttest.Unit(0)}
	engine := New(stubSelector{}, embedder)

	_, err := engine.Retrieve(context.Background(), "nobody", "question", DefaultK)
	assert.ErrorIs(t, err, ErrEmptyScope)

	// Scope is checked before the question.
	_, err = engine.Retrieve(context.Background(), "nobody", "  ", DefaultK)
	assert.ErrorIs(t, err, ErrEmptyScope)
	assert.Zero(t, embedder.calls)
}

func TestEngine_EmptyQuestion(t *testing.T) {
	embedder := &stubEmbedder{vec: documenttest.Unit(0)}
	scope := stubSelector{"alice": {{ID: "a", Title: "A", Embedding: documenttest.Unit(1)}}}
	engine := New(scope, embedder)

	_, err := engine.Retrieve(context.Background(), "alice", " \t", DefaultK)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Zero(t, embedder.calls)
}

func TestEngine_InvalidLimit(t *testing.T) {
	engine := New(stubSelector{}, &stubEmbedder{})

	_, err := engine.Retrieve(context.Background(), "alice", "question", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = engine.Retrieve(context.Background(), "alice", "question", -1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestEngine_GenerationFailurePropagates(t *testing.T) {
	genErr := &embedding.GenerationError{Cause: errors.New("oom")}
	scope := stubSelector{"alice": {{ID: "a", Title: "A", Embedding: documenttest.Unit(1)}}}
	engine := New(scope, &stubEmbedder{err: genErr})

	_, err := engine.Retrieve(context.Background(), "alice", "question", DefaultK)
	require.Error(t, err)
	assert.Same(t, genErr, err)
}

func TestEngine_RankerError(t *testing.T) {
	scope := stubSelector{"alice": {{ID: "a", Title: "A", Embedding: documenttest.Unit(1)}}}
	engine := New(scope, &stubEmbedder{vec: documenttest.Unit(0)}, WithRanker(failingRanker{}))

	_, err := engine.Retrieve(context.Background(), "alice", "question", DefaultK)
	assert.ErrorContains(t, err, "index unavailable")
}

func TestExact_DimensionMismatch(t *testing.T) {
	candidates := []document.Document{{ID: "a", Embedding: []float32{1, 0}}}

	_, err := Exact{}.Rank(context.Background(), documenttest.Unit(0), candidates, DefaultK)
	assert.Error(t, err)
}
