package knowledge

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/barekit/docscope/pkg/config"
	"github.com/barekit/docscope/pkg/document"
	docmem "github.com/barekit/docscope/pkg/document/inmemory"
	"github.com/barekit/docscope/pkg/embedding"
	"github.com/barekit/docscope/pkg/embedding/fake"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/barekit/docscope/pkg/selection"
	selmem "github.com/barekit/docscope/pkg/selection/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingIndexer struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
	err     error
}

func (r *recordingIndexer) Upsert(_ context.Context, doc document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, doc.Title)
	return r.err
}

func (r *recordingIndexer) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, id)
	return r.err
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, &embedding.GenerationError{Cause: errors.New("resource exhausted")}
}

func newKB(t *testing.T, opts ...Option) (*KnowledgeBase, *docmem.InMemory) {
	t.Helper()
	docs := docmem.New()
	logger := zaptest.NewLogger(t)
	scope := selection.NewScope(selmem.New(), docs, selection.WithLogger(logger))
	embedder := embedding.New(embedding.Static(fake.New()))
	return NewKnowledgeBase(docs, scope, embedder, append([]Option{WithLogger(logger)}, opts...)...), docs
}

func TestKnowledgeBase_IngestSelectAsk(t *testing.T) {
	kb, _ := newKB(t)
	ctx := context.Background()

	for _, title := range []string{"Go", "Rust", "Zig"} {
		doc, err := kb.Ingest(ctx, title, title+" is a systems programming language")
		require.NoError(t, err)
		assert.True(t, doc.HasEmbedding())
	}

	selected, err := kb.Select(ctx, "alice", []string{"Go", "Rust"})
	require.NoError(t, err)
	assert.Len(t, selected, 2)

	results, err := kb.Ask(ctx, "alice", "Go is a systems programming language", retrieval.DefaultK)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// The fake model is deterministic, so identical text is at distance zero.
	assert.Equal(t, "Go", results[0].Document.Title)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.Equal(t, "Rust", results[1].Document.Title)
}

func TestKnowledgeBase_IngestValidation(t *testing.T) {
	kb, docs := newKB(t)

	_, err := kb.Ingest(context.Background(), "", "content")
	assert.ErrorIs(t, err, document.ErrValidation)

	_, err = kb.Ingest(context.Background(), "title", "")
	assert.ErrorIs(t, err, document.ErrValidation)

	missing, err := docs.ListMissingEmbedding(context.Background())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestKnowledgeBase_IngestGenerationFailureStoresNothing(t *testing.T) {
	docs := docmem.New()
	scope := selection.NewScope(selmem.New(), docs)
	kb := NewKnowledgeBase(docs, scope, failingEmbedder{})

	_, err := kb.Ingest(context.Background(), "A", "alpha")
	assert.True(t, embedding.IsGenerationFailure(err))

	found, err := docs.FindByTitles(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestKnowledgeBase_AskWithoutSelection(t *testing.T) {
	kb, _ := newKB(t)
	ctx := context.Background()

	_, err := kb.Ingest(ctx, "A", "alpha")
	require.NoError(t, err)

	_, err = kb.Ask(ctx, "alice", "alpha?", retrieval.DefaultK)
	assert.ErrorIs(t, err, retrieval.ErrEmptyScope)

	_, err = kb.Select(ctx, "alice", []string{"A"})
	require.NoError(t, err)
	require.NoError(t, kb.ClearSelection(ctx, "alice"))

	_, err = kb.Ask(ctx, "alice", "alpha?", retrieval.DefaultK)
	assert.ErrorIs(t, err, retrieval.ErrEmptyScope)
}

func TestKnowledgeBase_DeleteCascades(t *testing.T) {
	idx := &recordingIndexer{}
	kb, _ := newKB(t, WithIndexer(idx))
	ctx := context.Background()

	a, err := kb.Ingest(ctx, "A", "alpha")
	require.NoError(t, err)
	_, err = kb.Ingest(ctx, "B", "beta")
	require.NoError(t, err)
	_, err = kb.Select(ctx, "alice", []string{"A", "B"})
	require.NoError(t, err)

	require.NoError(t, kb.Delete(ctx, a.ID))

	selected, err := kb.Selection(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "B", selected[0].Title)

	_, err = kb.Get(ctx, a.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)
	assert.Equal(t, []string{"A", "B"}, idx.upserts)
	assert.Equal(t, []string{a.ID}, idx.deletes)

	assert.ErrorIs(t, kb.Delete(ctx, a.ID), document.ErrNotFound)
}

func TestKnowledgeBase_IndexFailureReported(t *testing.T) {
	idx := &recordingIndexer{err: errors.New("qdrant down")}
	kb, _ := newKB(t, WithIndexer(idx))

	doc, err := kb.Ingest(context.Background(), "A", "alpha")
	assert.ErrorContains(t, err, "qdrant down")
	assert.NotEmpty(t, doc.ID)
}

func TestKnowledgeBase_SeedThenBackfill(t *testing.T) {
	kb, docs := newKB(t)
	ctx := context.Background()

	ids, err := kb.Seed(ctx, 4)
	require.NoError(t, err)
	require.Len(t, ids, 4)

	missing, err := docs.ListMissingEmbedding(ctx)
	require.NoError(t, err)
	assert.Len(t, missing, 4)

	report, err := kb.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Embedded)

	doc, err := kb.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Sample document 1", doc.Title)
	assert.True(t, doc.HasEmbedding())
}

func TestKnowledgeBase_Backfill(t *testing.T) {
	idx := &recordingIndexer{}
	kb, docs := newKB(t, WithIndexer(idx), WithBackfillConcurrency(2))
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		_, err := docs.Create(ctx, title, title+" content", nil)
		require.NoError(t, err)
	}

	report, err := kb.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Embedded)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, idx.upserts)

	_, err = kb.Select(ctx, "alice", []string{"A", "B", "C"})
	require.NoError(t, err)
	results, err := kb.Ask(ctx, "alice", "B content", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Document.Title)
}

func TestNewFactory_InMemory(t *testing.T) {
	cfg := &config.Config{
		Documents: config.DocumentsConfig{Store: "inmemory"},
		Selection: config.SelectionConfig{Store: "sqlite", DSN: ":memory:"},
		Embedding: config.EmbeddingConfig{Provider: "fake", MaxRunes: 512},
		Retrieval: config.RetrievalConfig{Ranker: "exact"},
		Backfill:  config.BackfillConfig{Concurrency: 2},
	}
	ctx := context.Background()

	kb, closeFn, err := NewFactory(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer closeFn(ctx)

	_, err = kb.Ingest(ctx, "A", "alpha")
	require.NoError(t, err)
	_, err = kb.Select(ctx, "alice", []string{"A"})
	require.NoError(t, err)

	results, err := kb.Ask(ctx, "alice", "alpha", retrieval.DefaultK)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestNewFactory_CloseReleasesConnections(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Documents: config.DocumentsConfig{Store: "sqlite", DSN: filepath.Join(dir, "docs.db")},
		Selection: config.SelectionConfig{Store: "sqlite", DSN: filepath.Join(dir, "selection.db")},
		Embedding: config.EmbeddingConfig{Provider: "fake", MaxRunes: 512},
		Retrieval: config.RetrievalConfig{Ranker: "exact"},
		Backfill:  config.BackfillConfig{Concurrency: 1},
	}
	ctx := context.Background()

	kb, closeFn, err := NewFactory(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = kb.Ingest(ctx, "A", "alpha")
	require.NoError(t, err)

	require.NoError(t, closeFn(ctx))

	_, err = kb.Ingest(ctx, "B", "beta")
	assert.ErrorContains(t, err, "database is closed")
	_, err = kb.Selection(ctx, "alice")
	assert.ErrorContains(t, err, "database is closed")
}

func TestNewFactory_PgvectorRankerNeedsPgvectorStore(t *testing.T) {
	cfg := &config.Config{
		Documents: config.DocumentsConfig{Store: "inmemory"},
		Selection: config.SelectionConfig{Store: "inmemory"},
		Embedding: config.EmbeddingConfig{Provider: "fake"},
		Retrieval: config.RetrievalConfig{Ranker: "pgvector"},
	}

	_, _, err := NewFactory(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "cannot rank")
}
