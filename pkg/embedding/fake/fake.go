// Package fake provides a deterministic embedding model for tests and local
// runs without a provider. Vectors are pseudo-random but seeded from the
// text, so the same text always yields the same vector.
package fake

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/barekit/docscope/pkg/vector"
)

// Model implements embedding.Model.
type Model struct {
	dim int
}

// New creates a fake model producing vector.Dim components.
func New() *Model {
	return &Model{dim: vector.Dim}
}

// Name returns "fake".
func (m *Model) Name() string {
	return "fake"
}

// Embed returns a normalised vector with components drawn from [0, 1).
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	raw := make([]float32, m.dim)
	for i := range raw {
		raw[i] = rng.Float32()
	}
	return vector.Normalize(raw)
}
