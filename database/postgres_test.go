package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
)

func TestConnect_DoesNotMigrate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	// Any DDL would be an unexpected query and fail the mock.
	db, err := connect(postgres.New(postgres.Config{Conn: sqlDB}), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_NilDB(t *testing.T) {
	assert.NoError(t, Close(nil))
}
