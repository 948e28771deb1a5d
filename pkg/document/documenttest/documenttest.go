// Package documenttest provides a conformance suite for document.Store
// implementations and vector fixtures for tests.
package documenttest

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Unit returns the i-th basis vector.
func Unit(i int) []float32 {
	v := make([]float32, vector.Dim)
	v[i%vector.Dim] = 1
	return v
}

// AtDistance returns a unit vector whose cosine distance from Unit(0) is d,
// for d in [0, 2]. Different axes give vectors that differ from each other.
func AtDistance(d float64, axis int) []float32 {
	cos := 1 - d
	sin := math.Sqrt(math.Max(0, 1-cos*cos))
	v := make([]float32, vector.Dim)
	v[0] = float32(cos)
	v[1+axis%(vector.Dim-1)] = float32(sin)
	return v
}

// RunStoreTests exercises the document.Store contract. newStore must return
// an empty store on every call.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) document.Store) {
	t.Helper()

	t.Run("CreateValidation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "", "content", nil)
		assert.ErrorIs(t, err, document.ErrValidation)

		_, err = s.Create(ctx, "title", "  ", nil)
		assert.ErrorIs(t, err, document.ErrValidation)

		_, err = s.Create(ctx, strings.Repeat("t", document.MaxTitleRunes+1), "content", nil)
		assert.ErrorIs(t, err, document.ErrValidation)

		_, err = s.Create(ctx, "title", "content", []float32{1, 0})
		assert.ErrorIs(t, err, document.ErrValidation)

		missing, err := s.ListMissingEmbedding(ctx)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		emb := AtDistance(0.25, 3)

		id, err := s.Create(ctx, "Go", "Go is a programming language.", emb)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
		assert.Equal(t, "Go", doc.Title)
		assert.Equal(t, "Go is a programming language.", doc.Content)
		assert.False(t, doc.CreatedAt.IsZero())
		require.Len(t, doc.Embedding, vector.Dim)
		for i := range emb {
			assert.InDelta(t, emb[i], doc.Embedding[i], 1e-6)
		}

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, document.ErrNotFound)
	})

	t.Run("FindByTitles", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.Create(ctx, "A", "alpha", Unit(1))
		require.NoError(t, err)
		b1, err := s.Create(ctx, "B", "beta one", Unit(2))
		require.NoError(t, err)
		b2, err := s.Create(ctx, "B", "beta two", nil)
		require.NoError(t, err)
		_, err = s.Create(ctx, "C", "gamma", Unit(3))
		require.NoError(t, err)

		docs, err := s.FindByTitles(ctx, []string{"A", "B", "B", "missing"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a, b1, b2}, IDs(docs))

		docs, err = s.FindByTitles(ctx, []string{"a"})
		require.NoError(t, err)
		assert.Empty(t, docs, "title match is exact")

		docs, err = s.FindByTitles(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("Backfill", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		withEmb, err := s.Create(ctx, "with", "has an embedding", Unit(5))
		require.NoError(t, err)
		without, err := s.Create(ctx, "without", "needs an embedding", nil)
		require.NoError(t, err)

		missing, err := s.ListMissingEmbedding(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{without}, IDs(missing))

		assert.ErrorIs(t, s.SaveEmbedding(ctx, without, []float32{2}), document.ErrValidation)
		assert.ErrorIs(t, s.SaveEmbedding(ctx, "missing", Unit(6)), document.ErrNotFound)
		require.NoError(t, s.SaveEmbedding(ctx, without, Unit(6)))

		missing, err = s.ListMissingEmbedding(ctx)
		require.NoError(t, err)
		assert.Empty(t, missing)

		doc, err := s.Get(ctx, without)
		require.NoError(t, err)
		assert.Equal(t, Unit(6), doc.Embedding)

		doc, err = s.Get(ctx, withEmb)
		require.NoError(t, err)
		assert.Equal(t, Unit(5), doc.Embedding)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "gone", "soon deleted", Unit(7))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, id))
		_, err = s.Get(ctx, id)
		assert.ErrorIs(t, err, document.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, id), document.ErrNotFound)
	})
}

// IDs projects documents onto their ids.
func IDs(docs []document.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
