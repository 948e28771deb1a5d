package openai

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/vector"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Model implements embedding.Model using the OpenAI embeddings API.
type Model struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// New creates a new OpenAI Model. Requests ask for vector.Dim dimensions.
func New(opts ...option.RequestOption) *Model {
	client := openai.NewClient(opts...)
	return &Model{
		client: &client,
		model:  openai.EmbeddingModelTextEmbedding3Small,
	}
}

// SetModel sets the embedding model to use.
func (m *Model) SetModel(model string) {
	m.model = openai.EmbeddingModel(model)
}

// Name returns the configured model name.
func (m *Model) Name() string {
	return string(m.model)
}

// Embed generates the embedding for a single text.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model:      m.model,
		Dimensions: openai.Int(vector.Dim),
	}

	resp, err := m.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response from %s", m.model)
	}

	// The API returns float64 components.
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
