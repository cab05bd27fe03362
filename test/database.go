package test

import (
	"path/filepath"
	"testing"

	"github.com/greenbudget/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TmpFile returns the path of a database file in a directory that is
// removed when the test ends.
func TmpFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "greenbudget.db")
}

// Database connects models.DB to a new, migrated SQLite database and
// closes the connection when the test ends.
func Database(t *testing.T) *gorm.DB {
	t.Helper()

	require.Nil(t, models.Connect(TmpFile(t)), "database connection failed")

	db := models.DB
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}
