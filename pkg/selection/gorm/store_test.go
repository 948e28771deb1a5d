package gorm_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/barekit/docscope/pkg/database"
	"github.com/barekit/docscope/pkg/selection"
	gormsel "github.com/barekit/docscope/pkg/selection/gorm"
	"github.com/barekit/docscope/pkg/selection/selectiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *gormsel.Store {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	s, err := gormsel.New(db, gormsel.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestStore_SQLite(t *testing.T) {
	selectiontest.RunStoreTests(t, func(t *testing.T) selection.Store {
		return newSQLiteStore(t)
	})
}

func TestStore_LoadKeepsInsertionOrder(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "alice", []string{"c", "a", "b"}))

	ids, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestStore_DuplicateRejectedAtomically(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "alice", []string{"a"}))

	// The unique (user, document) index rejects the batch and the delete
	// is rolled back with it.
	err := s.Replace(ctx, "alice", []string{"b", "b"})
	require.Error(t, err)

	ids, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func newMySQLMockStore(t *testing.T) (*gormsel.Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := gormsel.New(db, gormsel.WithoutMigration(), gormsel.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s, mock
}

func selectionRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "document_id", "created_at"}).
		AddRow(1, "alice", "doc-1", now).
		AddRow(2, "Alice", "doc-2", now).
		AddRow(3, "alice ", "doc-3", now)
}

// A case-insensitive collation returns every spelling of the user; only
// the exact one belongs to the scope.
func TestStore_LoadIsExactOnCaseInsensitiveServers(t *testing.T) {
	s, mock := newMySQLMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `selections` WHERE user_id = \\?").
		WithArgs("alice").
		WillReturnRows(selectionRows())

	ids, err := s.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceOnlyDeletesExactUser(t *testing.T) {
	s, mock := newMySQLMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `selections` WHERE user_id = \\?").
		WithArgs("alice").
		WillReturnRows(selectionRows())
	mock.ExpectExec("DELETE FROM `selections` WHERE id IN \\(\\?\\)").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `selections`").
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Replace(context.Background(), "alice", []string{"doc-9"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ClearOnlyDeletesExactUser(t *testing.T) {
	s, mock := newMySQLMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `selections` WHERE user_id = \\?").
		WithArgs("Alice").
		WillReturnRows(selectionRows())
	mock.ExpectExec("DELETE FROM `selections` WHERE id IN \\(\\?\\)").
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Clear(context.Background(), "Alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CloseReleasesPool(t *testing.T) {
	s, mock := newMySQLMockStore(t)
	mock.ExpectClose()

	require.NoError(t, s.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
