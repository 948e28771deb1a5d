package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/embedding"
	"go.uber.org/zap"
)

// DefaultK is the number of results returned when the caller has no preference.
const DefaultK = 5

var (
	// ErrEmptyScope is returned when the user has no documents selected.
	ErrEmptyScope = errors.New("no documents selected")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrInvalidLimit is returned when k is not positive.
	ErrInvalidLimit = errors.New("k must be a positive integer")
)

// Result is a ranked document and its cosine distance to the question.
type Result struct {
	Document document.Document
	Distance float64
}

// Ranker orders candidates by distance to query and returns at most k of
// them. Candidates without an embedding must be skipped.
type Ranker interface {
	Rank(ctx context.Context, query []float32, candidates []document.Document, k int) ([]Result, error)
}

// Selector resolves the documents currently in a user's scope.
type Selector interface {
	GetSelection(ctx context.Context, user string) ([]document.Document, error)
}

// Engine answers questions against a user's scope.
type Engine struct {
	scope    Selector
	embedder embedding.Embedder
	ranker   Ranker
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRanker replaces the default Exact ranker.
func WithRanker(r Ranker) Option {
	return func(e *Engine) {
		if r != nil {
			e.ranker = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine.
func New(scope Selector, embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{
		scope:    scope,
		embedder: embedder,
		ranker:   Exact{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns up to k documents from the user's scope, closest to the
// question first. Equal distances are ordered by document id.
func (e *Engine) Retrieve(ctx context.Context, user, question string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, k)
	}

	scope, err := e.scope.GetSelection(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}
	if len(scope) == 0 {
		return nil, ErrEmptyScope
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	// GenerationError is returned unchanged.
	query, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	candidates := make([]document.Document, 0, len(scope))
	for _, doc := range scope {
		if doc.HasEmbedding() {
			candidates = append(candidates, doc)
		}
	}
	if len(candidates) == 0 {
		e.logger.Debug("no embedded documents in scope", zap.String("user", user), zap.Int("scope", len(scope)))
		return []Result{}, nil
	}

	results, err := e.ranker.Rank(ctx, query, candidates, k)
	if err != nil {
		return nil, fmt.Errorf("failed to rank documents: %w", err)
	}
	results = Truncate(results, k)

	e.logger.Debug("retrieved documents",
		zap.String("user", user),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Truncate sorts results by (distance, id) and keeps the first k.
func Truncate(results []Result, k int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
