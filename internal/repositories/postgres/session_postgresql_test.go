package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// markSubmittedSQL is the conditional update; the status guard must be in the WHERE clause
const markSubmittedSQL = `UPDATE "test_sessions" SET "status"=\$1,"submitted_at"=\$2,"updated_at"=\$3 WHERE \(?id = \$4 AND status = \$5\)?`

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func expectMarkSubmitted(mock sqlmock.Sqlmock, id string) *sqlmock.ExpectedExec {
	mock.ExpectBegin()
	return mock.ExpectExec(markSubmittedSQL).
		WithArgs("Submitted", sqlmock.AnyArg(), sqlmock.AnyArg(), id, "InProgress")
}

func TestSessionPostgreSQL_MarkSubmittedWinsOnce(t *testing.T) {
	db, mock := newMockDB(t)
	sessions := NewSessionPostgreSQL(db)
	ctx := context.Background()

	expectMarkSubmitted(mock, "s-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// The second caller finds the row already flipped
	expectMarkSubmitted(mock, "s-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	won, err := sessions.MarkSubmitted(ctx, "s-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = sessions.MarkSubmitted(ctx, "s-1", time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionPostgreSQL_MarkSubmittedError(t *testing.T) {
	db, mock := newMockDB(t)
	sessions := NewSessionPostgreSQL(db)

	expectMarkSubmitted(mock, "s-1").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	won, err := sessions.MarkSubmitted(context.Background(), "s-1", time.Now())
	assert.Error(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}
