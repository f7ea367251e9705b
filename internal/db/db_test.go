package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/souq/internal/config"
)

func TestInit(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", ".souq")

	database, err := Init(base)
	require.NoError(t, err)
	defer database.Close()

	_, err = os.Stat(filepath.Join(base, FileName))
	require.NoError(t, err, "database file")
	for _, dir := range []string{"exports", "charts"} {
		info, err := os.Stat(filepath.Join(base, dir))
		require.NoError(t, err, dir)
		require.True(t, info.IsDir(), dir)
	}

	var journalMode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys;").Scan(&fk))
	require.Equal(t, 1, fk)
}

func TestInit_SchemaObjects(t *testing.T) {
	database := openTestDB(t)

	objects := map[string]string{
		"runs":              "table",
		"category_results":  "table",
		"daily_percentages": "table",
		"idx_runs_started":  "index",
		"idx_daily_term":    "index",
	}
	for name, kind := range objects {
		var got string
		err := database.QueryRow("SELECT name FROM sqlite_master WHERE type=? AND name=?", kind, name).Scan(&got)
		require.NoError(t, err, "%s %s missing", kind, name)
	}
}

func TestInit_Reopen(t *testing.T) {
	base := t.TempDir()

	first, err := Init(base)
	require.NoError(t, err)
	first.Close()

	second, err := Init(base)
	require.NoError(t, err)
	defer second.Close()

	version, err := GetUserVersion(second)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestUserVersion(t *testing.T) {
	database := openTestDB(t)

	version, err := GetUserVersion(database)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)

	require.NoError(t, SetUserVersion(database, 99))
	version, err = GetUserVersion(database)
	require.NoError(t, err)
	require.Equal(t, 99, version)
}

func TestConfigurePool(t *testing.T) {
	database := openTestDB(t)

	ConfigurePool(database, nil)
	ConfigurePool(database, &config.Config{DBMaxOpenConns: 3, DBMaxIdleConns: 2})
	require.Equal(t, 3, database.Stats().MaxOpenConnections)
}
