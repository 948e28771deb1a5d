package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/barekit/docscope/pkg/database"
	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/document/documenttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	s, err := New(db, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestStore_SQLite(t *testing.T) {
	documenttest.RunStoreTests(t, func(t *testing.T) document.Store {
		return newSQLiteStore(t)
	})
}

func TestStore_EmbeddingStoredAsNull(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "A", "alpha", nil)
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&DocumentModel{}).Where("embedding IS NULL AND id = ?", id).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func newMySQLMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := New(db, WithoutMigration(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s, mock
}

// MySQL matches "a", "A" and "a " for title IN ('a'); only the exact title
// may come back.
func TestStore_FindByTitlesIsExactOnCaseInsensitiveServers(t *testing.T) {
	s, mock := newMySQLMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `documents` WHERE title IN").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "embedding", "created_at"}).
			AddRow("id-upper", "A", "upper", nil, now).
			AddRow("id-exact", "a", "exact", nil, now).
			AddRow("id-padded", "a ", "padded", nil, now))

	docs, err := s.FindByTitles(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "id-exact", docs[0].ID)
	assert.Equal(t, "a", docs[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CloseReleasesPool(t *testing.T) {
	s, mock := newMySQLMockStore(t)
	mock.ExpectClose()

	require.NoError(t, s.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
