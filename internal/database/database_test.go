package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/argus/internal/models"
)

func TestOpen(t *testing.T) {
	// Test with memory DB
	db, err := Open("file::memory:?cache=shared")
	assert.NoError(t, err)
	assert.NotNil(t, db)

	// Test with file DB
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err = Open(dbPath)
	assert.NoError(t, err)
	assert.NotNil(t, db)
}

func TestMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&models.SecurityEvent{}))
	assert.True(t, db.Migrator().HasTable(&models.BlockRecord{}))

	// idempotent
	require.NoError(t, Migrate(db))

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.BlockRecord{UUID: "b-1", IP: "192.0.2.1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}).Error)
	var count int64
	db.Model(&models.BlockRecord{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
