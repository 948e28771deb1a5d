package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/barekit/docscope/pkg/document"
	"github.com/google/uuid"
)

// InMemory implements document.Store using a map.
type InMemory struct {
	mu   sync.RWMutex
	docs map[string]document.Document
}

// New creates a new InMemory store.
func New() *InMemory {
	return &InMemory{
		docs: make(map[string]document.Document),
	}
}

// Create stores a new document.
func (m *InMemory) Create(ctx context.Context, title, content string, embedding []float32) (string, error) {
	if err := document.ValidateNew(title, content, embedding); err != nil {
		return "", err
	}

	doc := document.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Embedding: clone(embedding),
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return doc.ID, nil
}

// Get returns a copy of the stored document.
func (m *InMemory) Get(ctx context.Context, id string) (document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	return copyDoc(doc), nil
}

// FindByTitles returns documents whose title is in titles, oldest first.
func (m *InMemory) FindByTitles(ctx context.Context, titles []string) ([]document.Document, error) {
	want := make(map[string]struct{}, len(titles))
	for _, t := range document.UniqueTitles(titles) {
		want[t] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []document.Document
	for _, doc := range m.docs {
		if _, ok := want[doc.Title]; ok {
			out = append(out, copyDoc(doc))
		}
	}
	sortByCreation(out)
	return out, nil
}

// ListMissingEmbedding returns documents without an embedding, oldest first.
func (m *InMemory) ListMissingEmbedding(ctx context.Context) ([]document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []document.Document
	for _, doc := range m.docs {
		if !doc.HasEmbedding() {
			out = append(out, copyDoc(doc))
		}
	}
	sortByCreation(out)
	return out, nil
}

// SaveEmbedding attaches an embedding to a stored document.
func (m *InMemory) SaveEmbedding(ctx context.Context, id string, embedding []float32) error {
	if err := document.ValidateEmbedding(embedding); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	doc.Embedding = clone(embedding)
	m.docs[id] = doc
	return nil
}

// Delete removes a document.
func (m *InMemory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	delete(m.docs, id)
	return nil
}

// Return copies so callers cannot mutate stored vectors.
func copyDoc(doc document.Document) document.Document {
	doc.Embedding = clone(doc.Embedding)
	return doc
}

func clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func sortByCreation(docs []document.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}
