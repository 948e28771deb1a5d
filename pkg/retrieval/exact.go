package retrieval

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/vector"
)

// Exact ranks by computing the cosine distance to every candidate.
type Exact struct{}

func (Exact) Rank(ctx context.Context, query []float32, candidates []document.Document, k int) ([]Result, error) {
	results := make([]Result, 0, len(candidates))
	for _, doc := range candidates {
		if !doc.HasEmbedding() {
			continue
		}
		d, err := vector.CosineDistance(query, doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		results = append(results, Result{Document: doc, Distance: d})
	}
	return Truncate(results, k), nil
}
