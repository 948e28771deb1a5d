package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/barekit/docscope/pkg/config"
	"github.com/barekit/docscope/pkg/database"
	"github.com/barekit/docscope/pkg/document"
	docgorm "github.com/barekit/docscope/pkg/document/gorm"
	docmem "github.com/barekit/docscope/pkg/document/inmemory"
	"github.com/barekit/docscope/pkg/document/pgvector"
	"github.com/barekit/docscope/pkg/embedding"
	"github.com/barekit/docscope/pkg/embedding/fake"
	embopenai "github.com/barekit/docscope/pkg/embedding/openai"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/barekit/docscope/pkg/retrieval/qdrant"
	"github.com/barekit/docscope/pkg/selection"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Closer releases the connections opened by NewFactory.
type Closer func(ctx context.Context) error

// NewFactory builds a KnowledgeBase and its backends from cfg.
func NewFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*KnowledgeBase, Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []func(context.Context) error
	closeAll := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*KnowledgeBase, Closer, error) {
		_ = closeAll(ctx)
		return nil, nil, err
	}

	docs, err := newDocumentStore(cfg.Documents, logger)
	if err != nil {
		return fail(err)
	}
	if c, ok := docs.(document.Closer); ok {
		closers = append(closers, c.Close)
	}

	selStore, err := selection.NewFactory(ctx, selection.Config{
		Type:             selection.Type(cfg.Selection.Store),
		ConnectionString: cfg.Selection.DSN,
		Username:         cfg.Selection.Username,
		Password:         cfg.Selection.Password,
		DBName:           cfg.Selection.DBName,
		Logger:           logger,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to open selection store: %w", err))
	}
	if c, ok := selStore.(selection.Closer); ok {
		closers = append(closers, c.Close)
	}

	opts := []Option{
		WithLogger(logger),
		WithBackfillConcurrency(cfg.Backfill.Concurrency),
		WithBackfillRate(cfg.Backfill.RatePerSecond),
	}
	switch cfg.Retrieval.Ranker {
	case "pgvector":
		ranker, ok := docs.(retrieval.Ranker)
		if !ok {
			return fail(fmt.Errorf("document store %q cannot rank", cfg.Documents.Store))
		}
		opts = append(opts, WithRanker(ranker))
	case "qdrant":
		idx, err := qdrant.New(ctx, cfg.Retrieval.QdrantHost, cfg.Retrieval.QdrantPort, cfg.Retrieval.QdrantCollection,
			qdrant.WithLogger(logger))
		if err != nil {
			return fail(fmt.Errorf("failed to open qdrant index: %w", err))
		}
		closers = append(closers, func(context.Context) error { return idx.Close() })
		opts = append(opts, WithRanker(idx), WithIndexer(idx))
	}

	embedder := embedding.New(newModel(cfg.Embedding),
		embedding.WithTimeout(cfg.Embedding.Timeout),
		embedding.WithMaxRunes(cfg.Embedding.MaxRunes),
		embedding.WithLogger(logger),
	)
	scope := selection.NewScope(selStore, docs, selection.WithLogger(logger))

	logger.Info("knowledge base ready",
		zap.String("documents", cfg.Documents.Store),
		zap.String("selection", cfg.Selection.Store),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("ranker", cfg.Retrieval.Ranker),
	)
	return NewKnowledgeBase(docs, scope, embedder, opts...), closeAll, nil
}

func newDocumentStore(cfg config.DocumentsConfig, logger *zap.Logger) (document.Store, error) {
	switch cfg.Store {
	case "inmemory":
		return docmem.New(), nil
	case "pgvector":
		return pgvector.Open(cfg.DSN, pgvector.WithLogger(logger))
	case "sqlite", "postgres", "mysql", "mssql":
		db, err := database.Open(database.Driver(cfg.Store), cfg.DSN)
		if err != nil {
			return nil, err
		}
		store, err := docgorm.New(db, docgorm.WithLogger(logger))
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported document store: %s", cfg.Store)
	}
}

// newModel defers client construction to the first Embed call.
func newModel(cfg config.EmbeddingConfig) *embedding.Shared {
	return embedding.NewShared(func(context.Context) (embedding.Model, error) {
		switch cfg.Provider {
		case "fake":
			return fake.New(), nil
		case "openai":
			reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
			if cfg.BaseURL != "" {
				reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
			}
			m := embopenai.New(reqOpts...)
			if cfg.Model != "" {
				m.SetModel(cfg.Model)
			}
			return m, nil
		default:
			return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
		}
	})
}
