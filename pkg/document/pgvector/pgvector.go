package pgvector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/docscope/pkg/consts"
	"github.com/barekit/docscope/pkg/database"
	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store implements document.Store on PostgreSQL with a native vector column.
// It also implements retrieval.Ranker by pushing the distance sort into the
// database through the cosine distance operator.
type Store struct {
	db      *gorm.DB
	logger  *zap.Logger
	migrate bool
}

// DocumentModel represents the database schema for a document.
type DocumentModel struct {
	ID        string           `gorm:"primaryKey;size:36"`
	Title     string           `gorm:"size:255;not null;index"`
	Content   string           `gorm:"not null"`
	Embedding *pgvector.Vector `gorm:"type:vector(384)"`
	CreatedAt time.Time        `gorm:"not null"`
}

// TableName overrides the table name.
func (DocumentModel) TableName() string {
	return consts.TableNameDocuments
}

func (m DocumentModel) toDocument() document.Document {
	doc := document.Document{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Embedding != nil {
		doc.Embedding = m.Embedding.Slice()
	}
	return doc
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

// WithoutMigration skips extension creation and AutoMigrate.
func WithoutMigration() Option {
	return func(s *Store) {
		s.migrate = false
	}
}

// Open connects to dsn and creates a Store.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := database.Open(database.DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}
	s, err := New(db, opts...)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return s, nil
}

// New creates a Store over an existing connection.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, logger: zap.NewNop(), migrate: true}
	for _, opt := range opts {
		opt(s)
	}

	if s.migrate {
		// Enable pgvector extension
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
		}
		if err := db.AutoMigrate(&DocumentModel{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return s, nil
}

// Create inserts a new document.
func (s *Store) Create(ctx context.Context, title, content string, embedding []float32) (string, error) {
	if err := document.ValidateNew(title, content, embedding); err != nil {
		return "", err
	}

	model := DocumentModel{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		model.Embedding = &v
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	s.logger.Debug("document created", zap.String("id", model.ID), zap.Bool("embedded", embedding != nil))
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

// FindByTitles loads every document whose title is in titles.
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
	return toDocuments(models), nil
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
		Update(consts.ColEmbedding, pgvector.NewVector(embedding))
	if res.Error != nil {
		return fmt.Errorf("failed to save embedding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", document.ErrNotFound, id)
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

type rankedRow struct {
	ID       string
	Distance float64
}

// Rank orders the candidates by cosine distance to query using pgvector's
// <=> operator, ties broken by id.
func (s *Store) Rank(ctx context.Context, query []float32, candidates []document.Document, k int) ([]retrieval.Result, error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	byID := make(map[string]document.Document, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	var rows []rankedRow
	err := s.db.WithContext(ctx).Model(&DocumentModel{}).
		Select(consts.ColID+", "+consts.ColEmbedding+" <=> ? AS distance", pgvector.NewVector(query)).
		Where(consts.ColID+" IN ?", ids).
		Where(consts.ColEmbedding + " IS NOT NULL").
		Order("distance asc").Order(consts.ColID + " asc").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank documents: %w", err)
	}

	results := make([]retrieval.Result, 0, len(rows))
	for _, row := range rows {
		doc, ok := byID[row.ID]
		if !ok {
			continue
		}
		results = append(results, retrieval.Result{Document: doc, Distance: row.Distance})
	}
	return results, nil
}

func toDocuments(models []DocumentModel) []document.Document {
	docs := make([]document.Document, len(models))
	for i, m := range models {
		docs[i] = m.toDocument()
	}
	return docs
}

var (
	_ document.Store   = (*Store)(nil)
	_ document.Closer  = (*Store)(nil)
	_ retrieval.Ranker = (*Store)(nil)
)

// Close closes the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	return database.Close(s.db)
}
