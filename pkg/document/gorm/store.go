package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/docscope/pkg/consts"
	"github.com/barekit/docscope/pkg/database"
	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/vector"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store implements document.Store using GORM. Embeddings are kept in a
// binary column, so any gorm dialect works.
type Store struct {
	db      *gorm.DB
	logger  *zap.Logger
	migrate bool
}

// DocumentModel represents the database schema for a document.
type DocumentModel struct {
	ID        string               `gorm:"primaryKey;size:36"`
	Title     database.ExactString `gorm:"size:255;not null;index"`
	Content   string               `gorm:"not null"`
	Embedding vector.Blob          // NULL until computed
	CreatedAt time.Time            `gorm:"not null"`
}

// TableName overrides the table name.
func (DocumentModel) TableName() string {
	return consts.TableNameDocuments
}

func (m DocumentModel) toDocument() document.Document {
	return document.Document{
		ID:        m.ID,
		Title:     string(m.Title),
		Content:   m.Content,
		Embedding: []float32(m.Embedding),
		CreatedAt: m.CreatedAt,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithoutMigration skips AutoMigrate.
func WithoutMigration() Option {
	return func(s *Store) {
		s.migrate = false
	}
}

// New creates a new Store and migrates its schema.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, logger: zap.NewNop(), migrate: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.migrate {
		if err := db.AutoMigrate(&DocumentModel{}); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	return database.Close(s.db)
}

// Create inserts a new document.
func (s *Store) Create(ctx context.Context, title, content string, embedding []float32) (string, error) {
	if err := document.ValidateNew(title, content, embedding); err != nil {
		return "", err
	}

	model := DocumentModel{
		ID:        uuid.NewString(),
		Title:     database.ExactString(title),
		Content:   content,
		Embedding: vector.Blob(embedding),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	s.logger.Debug("document created", zap.String("id", model.ID), zap.Bool("embedded", len(embedding) > 0))
	return model.ID, nil
}

// Get loads a document by id.
func (s *Store) Get(ctx context.Context, id string) (document.Document, error) {
	var model DocumentModel
	err := s.db.WithContext(ctx).Where(consts.ColID+" = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	return model.toDocument(), nil
}

// FindByTitles loads every document whose title is in titles. Rows are
// rechecked in Go since MySQL and SQL Server pad trailing spaces.
func (s *Store) FindByTitles(ctx context.Context, titles []string) ([]document.Document, error) {
	titles = document.UniqueTitles(titles)
	if len(titles) == 0 {
		return nil, nil
	}

	var models []DocumentModel
	if err := s.db.WithContext(ctx).
		Where(consts.ColTitle+" IN ?", titles).
		Order(consts.ColCreatedAt + " asc").Order(consts.ColID + " asc").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find documents by title: %w", err)
	}

	want := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		want[t] = struct{}{}
	}
	docs := make([]document.Document, 0, len(models))
	for _, m := range models {
		if _, ok := want[string(m.Title)]; ok {
			docs = append(docs, m.toDocument())
		}
	}
	return docs, nil
}

// ListMissingEmbedding loads documents with a NULL embedding.
func (s *Store) ListMissingEmbedding(ctx context.Context) ([]document.Document, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).
		Where(consts.ColEmbedding + " IS NULL").
		Order(consts.ColCreatedAt + " asc").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents without embedding: %w", err)
	}
	return toDocuments(models), nil
}

// SaveEmbedding sets the embedding of an existing document.
func (s *Store) SaveEmbedding(ctx context.Context, id string, embedding []float32) error {
	if err := document.ValidateEmbedding(embedding); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&DocumentModel{}).
		Where(consts.ColID+" = ?", id).
		Update(consts.ColEmbedding, vector.Blob(embedding))
	if res.Error != nil {
		return fmt.Errorf("failed to save embedding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows when the value is unchanged.
		var n int64
		if err := s.db.WithContext(ctx).Model(&DocumentModel{}).Where(consts.ColID+" = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to save embedding: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", document.ErrNotFound, id)
		}
	}

	s.logger.Debug("embedding saved", zap.String("id", id))
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where(consts.ColID+" = ?", id).Delete(&DocumentModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}

	s.logger.Debug("document deleted", zap.String("id", id))
	return nil
}

func toDocuments(models []DocumentModel) []document.Document {
	docs := make([]document.Document, len(models))
	for i, m := range models {
		docs[i] = m.toDocument()
	}
	return docs
}

var (
	_ document.Store  = (*Store)(nil)
	_ document.Closer = (*Store)(nil)
)
