package ops

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
)

const bom = "\xEF\xBB\xBF"

// rawPosts has two demand days, one supply day, one post without
// vocabulary terms and one row with a bad timestamp on line 7.
const rawPosts = "date,text\n" +
	"2025-06-01 09:00:00+03:00,مطلوب سكر سكر طحين\n" +
	"2025-06-01 10:00:00+03:00,مطلوب رز\n" +
	"2025-06-02 10:00:00+03:00,سكر للبيع\n" +
	"2025-06-02 11:00:00+03:00,غير ذلك\n" +
	"2025-06-02 12:00:00+03:00,مطلوب سكر رز\n" +
	"bad,مطلوب سكر\n"

const wantDemandDaily = bom + "day,سكر,طحين,رز\n" +
	"2025-06-01,50.0,25.0,25.0\n" +
	"2025-06-02,50.0,0.0,50.0\n"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Vocabulary = []string{"سكر", "طحين", "رز"}
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// seedRun runs the pipeline over rawPosts and returns the output.
func seedRun(t *testing.T, database *sql.DB) *RunOutput {
	t.Helper()
	dir := t.TempDir()
	source := writeFile(t, dir, "raw.csv", rawPosts)
	out, err := Run(context.Background(), database, testConfig(), RunInput{
		Source:    source,
		OutputDir: filepath.Join(dir, "data"),
	})
	require.NoError(t, err)
	return out
}
