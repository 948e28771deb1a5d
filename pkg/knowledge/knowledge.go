package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/barekit/docscope/pkg/backfill"
	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/embedding"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/barekit/docscope/pkg/selection"
	"go.uber.org/zap"
)

// Indexer mirrors stored embeddings into an external vector index.
type Indexer interface {
	// Upsert stores the embedding of doc.
	Upsert(ctx context.Context, doc document.Document) error
	// Delete removes a document from the index.
	Delete(ctx context.Context, id string) error
}

// KnowledgeBase ties documents, per-user scopes and retrieval together.
type KnowledgeBase struct {
	docs     document.Store
	scope    *selection.Scope
	embedder embedding.Embedder
	engine   *retrieval.Engine
	indexer  Indexer
	ranker   retrieval.Ranker
	logger   *zap.Logger

	backfillConcurrency int
	backfillRate        float64
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithIndexer keeps an external index in sync with ingested and deleted
// documents.
func WithIndexer(idx Indexer) Option {
	return func(kb *KnowledgeBase) {
		kb.indexer = idx
	}
}

// WithRanker sets the ranker used by Ask.
func WithRanker(r retrieval.Ranker) Option {
	return func(kb *KnowledgeBase) {
		kb.ranker = r
	}
}

// WithBackfillConcurrency bounds Backfill parallelism.
func WithBackfillConcurrency(n int) Option {
	return func(kb *KnowledgeBase) {
		kb.backfillConcurrency = n
	}
}

// WithBackfillRate caps Backfill embedding calls per second.
func WithBackfillRate(perSecond float64) Option {
	return func(kb *KnowledgeBase) {
		kb.backfillRate = perSecond
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(kb *KnowledgeBase) {
		if logger != nil {
			kb.logger = logger
		}
	}
}

// NewKnowledgeBase creates a new KnowledgeBase.
func NewKnowledgeBase(docs document.Store, scope *selection.Scope, embedder embedding.Embedder, opts ...Option) *KnowledgeBase {
	kb := &KnowledgeBase{
		docs:     docs,
		scope:    scope,
		embedder: embedder,
		logger:   zap.NewNop(),

		backfillConcurrency: backfill.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(kb)
	}
	kb.engine = retrieval.New(scope, embedder,
		retrieval.WithRanker(kb.ranker),
		retrieval.WithLogger(kb.logger),
	)
	return kb
}

// Ingest embeds content and stores a new document. Nothing is stored when
// embedding fails.
func (kb *KnowledgeBase) Ingest(ctx context.Context, title, content string) (document.Document, error) {
	if err := document.ValidateNew(title, content, nil); err != nil {
		return document.Document{}, err
	}

	vec, err := kb.embedder.Embed(ctx, content)
	if err != nil {
		kb.logger.Error("failed to embed document", zap.String("title", title), zap.Error(err))
		return document.Document{}, err
	}

	id, err := kb.docs.Create(ctx, title, content, vec)
	if err != nil {
		return document.Document{}, err
	}
	doc, err := kb.docs.Get(ctx, id)
	if err != nil {
		return document.Document{}, err
	}

	if err := kb.index(ctx, doc); err != nil {
		return doc, err
	}

	kb.logger.Info("document ingested", zap.String("id", id), zap.String("title", title))
	return doc, nil
}

func (kb *KnowledgeBase) index(ctx context.Context, doc document.Document) error {
	if kb.indexer == nil {
		return nil
	}
	if err := kb.indexer.Upsert(ctx, doc); err != nil {
		kb.logger.Error("failed to index document", zap.String("id", doc.ID), zap.Error(err))
		return fmt.Errorf("document %s stored but not indexed: %w", doc.ID, err)
	}
	return nil
}

// Get returns a document by id.
func (kb *KnowledgeBase) Get(ctx context.Context, id string) (document.Document, error) {
	return kb.docs.Get(ctx, id)
}

// Delete removes a document, every selection referencing it and its index
// entry.
func (kb *KnowledgeBase) Delete(ctx context.Context, id string) error {
	if err := kb.docs.Delete(ctx, id); err != nil {
		return err
	}

	var errs []error
	if err := kb.scope.RemoveDocument(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if kb.indexer != nil {
		if err := kb.indexer.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove document from index: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		kb.logger.Error("document deleted with errors", zap.String("id", id), zap.Error(err))
		return err
	}

	kb.logger.Info("document deleted", zap.String("id", id))
	return nil
}

// Select makes the documents titled titles the user's scope and returns
// them.
func (kb *KnowledgeBase) Select(ctx context.Context, user string, titles []string) ([]document.Document, error) {
	return kb.scope.SelectTitles(ctx, user, titles)
}

// Selection returns the documents in the user's scope.
func (kb *KnowledgeBase) Selection(ctx context.Context, user string) ([]document.Document, error) {
	return kb.scope.GetSelection(ctx, user)
}

// ClearSelection empties the user's scope.
func (kb *KnowledgeBase) ClearSelection(ctx context.Context, user string) error {
	return kb.scope.ClearSelection(ctx, user)
}

// Ask returns the k documents in the user's scope closest to question.
func (kb *KnowledgeBase) Ask(ctx context.Context, user, question string, k int) ([]retrieval.Result, error) {
	return kb.engine.Retrieve(ctx, user, question, k)
}

// Seed stores n sample documents without embeddings, for exercising
// Backfill against an empty store.
func (kb *KnowledgeBase) Seed(ctx context.Context, n int) ([]string, error) {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		title := fmt.Sprintf("Sample document %d", i)
		content := fmt.Sprintf("Sample content number %d for embedding backfill.", i)
		id, err := kb.docs.Create(ctx, title, content, nil)
		if err != nil {
			return ids, fmt.Errorf("failed to seed %q: %w", title, err)
		}
		ids = append(ids, id)
	}
	kb.logger.Info("sample documents seeded", zap.Int("count", len(ids)))
	return ids, nil
}

// Backfill embeds every document that has no embedding yet and indexes it.
func (kb *KnowledgeBase) Backfill(ctx context.Context) (backfill.Report, error) {
	opts := []backfill.Option{
		backfill.WithConcurrency(kb.backfillConcurrency),
		backfill.WithRateLimit(kb.backfillRate),
		backfill.WithLogger(kb.logger),
	}
	if kb.indexer != nil {
		opts = append(opts, backfill.OnSaved(kb.indexer.Upsert))
	}
	return backfill.Run(ctx, kb.docs, kb.embedder, opts...)
}
