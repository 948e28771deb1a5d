package qdrant

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/barekit/docscope/pkg/vector"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// Index mirrors document embeddings into a Qdrant collection and ranks
// scoped candidates there. Point ids are the document ids.
type Index struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New connects to Qdrant and creates the collection if it does not exist.
func New(ctx context.Context, host string, port int, collection string, opts ...Option) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	idx := &Index{
		client:     client,
		collection: collection,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}

	if err := idx.initCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) initCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vector.Dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	i.logger.Info("qdrant collection created", zap.String("collection", i.collection))
	return nil
}

// Upsert stores the embedding of doc. Documents without one are ignored.
func (i *Index) Upsert(ctx context.Context, doc document.Document) error {
	if !doc.HasEmbedding() {
		return nil
	}

	wait := true
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: map[string]*qdrant.Value{
				"title": qdrant.NewValueString(doc.Title),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Delete removes the point of a document.
func (i *Index) Delete(ctx context.Context, id string) error {
	wait := true
	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// Rank queries the collection restricted to the candidate ids. Qdrant
// reports cosine similarity, which is converted back to a distance.
func (i *Index) Rank(ctx context.Context, query []float32, candidates []document.Document, k int) ([]retrieval.Result, error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	byID := make(map[string]document.Document, len(candidates))
	ids := make([]*qdrant.PointId, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasEmbedding() {
			continue
		}
		byID[c.ID] = c
		ids = append(ids, qdrant.NewIDUUID(c.ID))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Ask for every candidate so that ties at the k boundary are resolved
	// by id here rather than by Qdrant.
	limit := uint64(len(ids))
	hits, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(query...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewHasID(ids...)},
		},
		Limit: &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	results := make([]retrieval.Result, 0, len(hits))
	for _, hit := range hits {
		doc, ok := byID[hit.GetId().GetUuid()]
		if !ok {
			continue
		}
		results = append(results, retrieval.Result{Document: doc, Distance: 1 - float64(hit.GetScore())})
	}

	if len(results) < len(ids) {
		i.logger.Warn("qdrant index is missing scoped documents",
			zap.Int("candidates", len(ids)),
			zap.Int("indexed", len(results)),
		)
	}
	return retrieval.Truncate(results, k), nil
}

// Close releases the client connection.
func (i *Index) Close() error {
	return i.client.Close()
}

var _ retrieval.Ranker = (*Index)(nil)
