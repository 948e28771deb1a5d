package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/barekit/docscope/pkg/vector"
)

// MaxTitleRunes bounds the length of a document title.
const MaxTitleRunes = 255

var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a document id does not resolve.
	ErrNotFound = errors.New("document not found")
)

// Document is a registered text together with its embedding.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HasEmbedding reports whether an embedding has been attached.
func (d Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// Store is the durable collection of documents.
type Store interface {
	// Create stores a new document and returns its generated id. The
	// embedding may be nil and attached later with SaveEmbedding.
	Create(ctx context.Context, title, content string, embedding []float32) (string, error)
	// Get returns a document by id.
	Get(ctx context.Context, id string) (Document, error)
	// FindByTitles returns every document whose title exactly matches one of
	// titles. Documents sharing a title are all returned.
	FindByTitles(ctx context.Context, titles []string) ([]Document, error)
	// ListMissingEmbedding returns documents without an embedding.
	ListMissingEmbedding(ctx context.Context) ([]Document, error)
	// SaveEmbedding attaches an embedding to an existing document.
	SaveEmbedding(ctx context.Context, id string, embedding []float32) error
	// Delete removes a document.
	Delete(ctx context.Context, id string) error
}

// Closer is implemented by stores that hold a connection.
type Closer interface {
	Close(ctx context.Context) error
}

// ValidateNew checks the fields passed to Store.Create.
func ValidateNew(title, content string, embedding []float32) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleRunes)
	}
	if embedding != nil {
		return ValidateEmbedding(embedding)
	}
	return nil
}

// ValidateEmbedding checks that embedding can be stored.
func ValidateEmbedding(embedding []float32) error {
	if err := vector.Validate(embedding); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// UniqueTitles drops blanks and duplicates from titles.
func UniqueTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
