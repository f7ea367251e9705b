package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/souq/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the database file created under the base directory.
const FileName = "souq.db"

// dataDirs are created next to the database for default exports and charts.
var dataDirs = []string{"exports", "charts"}

// migrations[i] moves the schema from version i to i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS runs (
	  id          TEXT PRIMARY KEY,
	  source      TEXT NOT NULL,
	  records     INTEGER NOT NULL,
	  skipped     INTEGER NOT NULL,
	  started_at  INTEGER NOT NULL,
	  finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started
	ON runs(started_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS category_results (
	  run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	  position      INTEGER NOT NULL,
	  category      TEXT NOT NULL,
	  status        TEXT NOT NULL,
	  message       TEXT NOT NULL,
	  matched       INTEGER NOT NULL,
	  days          INTEGER NOT NULL,
	  terms_json    TEXT NOT NULL,
	  filtered_path TEXT,
	  daily_path    TEXT,
	  PRIMARY KEY (run_id, category)
	);

	CREATE TABLE IF NOT EXISTS daily_percentages (
	  run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	  category   TEXT NOT NULL,
	  day        TEXT NOT NULL,
	  term_index INTEGER NOT NULL,
	  term       TEXT NOT NULL,
	  percent    REAL NOT NULL,
	  PRIMARY KEY (run_id, category, day, term_index)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_term
	ON daily_percentages(run_id, category, term, day);
	`,
}

// CurrentSchemaVersion is the version Init migrates to.
var CurrentSchemaVersion = len(migrations)

// Init opens (creating if needed) the run history database at baseDir/souq.db.
// Tests pass t.TempDir() as baseDir.
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range append([]string{baseDir}, dataDirs...) {
		if dir != baseDir {
			dir = filepath.Join(baseDir, dir)
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		_ = os.Chmod(dir, 0700)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)
	return db, nil
}

// ConfigurePool applies the pool limits set in cfg. Zero values keep the
// database/sql defaults.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies every migration above the stored user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if err := SetUserVersion(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the schema version stored in the user_version pragma.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion stores the schema version in the user_version pragma.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
