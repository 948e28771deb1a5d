// Package backfill attaches embeddings to documents stored without one.
package backfill

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/embedding"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the number of documents embedded at once.
const DefaultConcurrency = 4

// Report summarises a run.
type Report struct {
	Total    int `json:"total"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Hook is called after an embedding has been saved.
type Hook func(ctx context.Context, doc document.Document) error

type options struct {
	concurrency int
	logger      *zap.Logger
	onSaved     Hook
	limiter     *rate.Limiter
}

// Option configures a run.
type Option func(*options)

// WithConcurrency bounds the number of documents processed in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRateLimit caps embedding calls per second across all workers, for
// providers that throttle. Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) {
		if perSecond > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// OnSaved registers a hook run for every document that received an
// embedding. A hook error counts the document as failed.
func OnSaved(h Hook) Option {
	return func(o *options) {
		o.onSaved = h
	}
}

// Run embeds the content of every document that has no embedding and saves
// the result. Documents are processed concurrently in no particular order.
// A failing document is logged and counted; it does not stop the others.
// Only listing errors and context cancellation abort the run.
func Run(ctx context.Context, store document.Store, embedder embedding.Embedder, opts ...Option) (Report, error) {
	o := options{concurrency: DefaultConcurrency, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	docs, err := store.ListMissingEmbedding(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list documents: %w", err)
	}
	report := Report{Total: len(docs)}
	if len(docs) == 0 {
		o.logger.Info("all documents already have embeddings")
		return report, nil
	}

	var embedded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if o.limiter != nil {
				if err := o.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			if err := process(gctx, store, embedder, o.onSaved, doc); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				o.logger.Warn("failed to backfill document", zap.String("id", doc.ID), zap.Error(err))
				return nil
			}
			embedded.Add(1)
			return nil
		})
	}
	err = g.Wait()

	report.Embedded = int(embedded.Load())
	report.Failed = int(failed.Load())
	o.logger.Info("backfill finished",
		zap.Int("total", report.Total),
		zap.Int("embedded", report.Embedded),
		zap.Int("failed", report.Failed),
	)
	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

func process(ctx context.Context, store document.Store, embedder embedding.Embedder, onSaved Hook, doc document.Document) error {
	vec, err := embedder.Embed(ctx, doc.Content)
	if err != nil {
		return err
	}
	if err := store.SaveEmbedding(ctx, doc.ID, vec); err != nil {
		return err
	}
	if onSaved != nil {
		doc.Embedding = vec
		return onSaved(ctx, doc)
	}
	return nil
}
