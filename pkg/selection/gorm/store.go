package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/barekit/docscope/pkg/consts"
	"github.com/barekit/docscope/pkg/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store implements selection.Store using GORM. Each selected document is a
// row; Replace deletes and inserts inside one transaction. User ids are
// matched exactly on every dialect.
type Store struct {
	db      *gorm.DB
	logger  *zap.Logger
	migrate bool
}

// SelectionModel represents the database schema for a selected document.
type SelectionModel struct {
	ID         uint                 `gorm:"primaryKey"`
	UserID     database.ExactString `gorm:"size:255;not null;uniqueIndex:idx_selection_user_document"`
	DocumentID string               `gorm:"size:36;not null;uniqueIndex:idx_selection_user_document;index:idx_selection_document"`
	CreatedAt  time.Time            `gorm:"not null"`
}

// TableName overrides the table name.
func (SelectionModel) TableName() string {
	return consts.TableNameSelections
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
		if err := db.AutoMigrate(&SelectionModel{}); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	return database.Close(s.db)
}

// userRows loads the user's rows. The database comparison may pad trailing
// spaces, so rows are rechecked with ==.
func userRows(tx *gorm.DB, user string) ([]SelectionModel, error) {
	var rows []SelectionModel
	if err := tx.Where(consts.ColUserID+" = ?", user).Order(consts.ColID + " asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	exact := rows[:0]
	for _, r := range rows {
		if string(r.UserID) == user {
			exact = append(exact, r)
		}
	}
	return exact, nil
}

func deleteUserRows(tx *gorm.DB, user string) error {
	rows, err := userRows(tx, user)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return tx.Where(consts.ColID+" IN ?", ids).Delete(&SelectionModel{}).Error
}

// Replace installs ids as the user's scope.
func (s *Store) Replace(ctx context.Context, user string, ids []string) error {
	now := time.Now().UTC()
	rows := make([]SelectionModel, len(ids))
	for i, id := range ids {
		rows[i] = SelectionModel{UserID: database.ExactString(user), DocumentID: id, CreatedAt: now}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteUserRows(tx, user); err != nil {
			return fmt.Errorf("failed to delete previous selection: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert selection: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("selection stored", zap.String("user", user), zap.Int("documents", len(ids)))
	return nil
}

// Load returns the ids in the user's scope in insertion order.
func (s *Store) Load(ctx context.Context, user string) ([]string, error) {
	rows, err := userRows(s.db.WithContext(ctx), user)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.DocumentID
	}
	return ids, nil
}

// Clear empties the user's scope.
func (s *Store) Clear(ctx context.Context, user string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteUserRows(tx, user)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("selection cleared", zap.String("user", user))
	return nil
}

// Forget removes documentID from every scope.
func (s *Store) Forget(ctx context.Context, documentID string) error {
	res := s.db.WithContext(ctx).Where(consts.ColDocumentID+" = ?", documentID).Delete(&SelectionModel{})
	if res.Error != nil {
		return res.Error
	}
	s.logger.Debug("selections forgotten", zap.String("document_id", documentID), zap.Int64("rows", res.RowsAffected))
	return nil
}
