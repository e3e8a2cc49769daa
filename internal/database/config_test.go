package database

import (
	"path/filepath"
	"testing"

	"smiles/internal/config"
	"smiles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenSQLiteMigratesAndSeedsStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "happiness.db")

	db, err := Open(config.Database{Driver: "sqlite", SQLitePath: path}, zap.NewNop())
	require.NoError(t, err)

	var stats models.Stats
	require.NoError(t, db.First(&stats, models.StatsID).Error)
	assert.Equal(t, int64(0), stats.SmileCount)

	for _, table := range []string{"senders", "messages", "email_notifications", "stats", "waitlist"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(config.Database{Driver: "sqlite", SQLitePath: "file:migrate_twice?mode=memory&cache=shared"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Stats{}).Where("id = ?", models.StatsID).Update("smile_count", 7).Error)
	require.NoError(t, Migrate(db))

	var stats models.Stats
	require.NoError(t, db.First(&stats, models.StatsID).Error)
	assert.Equal(t, int64(7), stats.SmileCount)

	var count int64
	require.NoError(t, db.Model(&models.Stats{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteDSN(t *testing.T) {
	dsn, err := sqliteDSN("file:x?mode=memory")
	require.NoError(t, err)
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn)

	_, err = sqliteDSN("")
	assert.Error(t, err)
}

func TestPostgresDSNPrefersDatabaseURL(t *testing.T) {
	cfg := config.Database{DatabaseURL: "postgres://u:p@db/smiles", Host: "ignored"}
	assert.Equal(t, "postgres://u:p@db/smiles", postgresDSN(cfg))

	cfg.DatabaseURL = ""
	cfg.User = "smiles"
	assert.Contains(t, postgresDSN(cfg), "host=ignored user=smiles")
}
