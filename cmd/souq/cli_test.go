package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/ops"
	"github.com/hpungsan/souq/internal/run"
)

const rawPosts = "date,text\n" +
	"2025-06-01 09:00:00+03:00,مطلوب سكر سكر طحين\n" +
	"2025-06-01 10:00:00+03:00,مطلوب رز\n" +
	"2025-06-02 10:00:00+03:00,سكر للبيع\n" +
	"2025-06-02 12:00:00+03:00,مطلوب سكر رز\n"

// setupTest creates a temporary database, config and source table.
func setupTest(t *testing.T) (*sql.DB, *config.Config, string) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Vocabulary = []string{"سكر", "طحين", "رز"}
	cfg.OutputDir = filepath.Join(tmpDir, "data")
	cfg.ChartDir = filepath.Join(tmpDir, "charts")

	source := filepath.Join(tmpDir, "raw.csv")
	if err := os.WriteFile(source, []byte(rawPosts), 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return database, cfg, source
}

// runApp runs the CLI with args and returns what it printed to stdout.
func runApp(t *testing.T, database *sql.DB, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, cfg)

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	runErr := app.Run(append([]string{"souq"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), runErr
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single item", input: "demand", expected: []string{"demand"}},
		{name: "items with spaces", input: " demand , supply ", expected: []string{"demand", "supply"}},
		{name: "empty items dropped", input: "demand,,", expected: []string{"demand"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseList(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("parseList(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("parseList(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestFailedCategories(t *testing.T) {
	cats := []run.CategoryResult{
		{Category: "a", Status: run.StatusOK},
		{Category: "b", Status: run.StatusNoMatches},
		{Category: "c", Status: run.StatusFailed},
	}
	if n := failedCategories(cats); n != 1 {
		t.Errorf("failedCategories = %d, want 1", n)
	}
}

func TestCLIRun(t *testing.T) {
	database, cfg, source := setupTest(t)
	outDir := filepath.Join(t.TempDir(), "tables")

	out, err := runApp(t, database, cfg, "run", "--output-dir", outDir, source)
	if err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	var output ops.RunOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if !output.OK || len(output.Categories) != 2 {
		t.Errorf("output = %+v", output)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "demand_daily.csv"))
	if err != nil {
		t.Fatalf("read daily table: %v", err)
	}
	want := "\xEF\xBB\xBFday,سكر,طحين,رز\n2025-06-01,50.0,25.0,25.0\n2025-06-02,50.0,0.0,50.0\n"
	if string(data) != want {
		t.Errorf("demand_daily.csv = %q, want %q", data, want)
	}
}

func TestCLIRun_NoMatchesIsNotAFailure(t *testing.T) {
	database, cfg, source := setupTest(t)
	cfg.Categories = append(cfg.Categories, config.CategoryConfig{Name: "rent", Patterns: []string{"للإيجار"}})

	out, err := runApp(t, database, cfg, "run", source)
	if err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	var output ops.RunOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.OK {
		t.Error("expected ok=false with a category without matches")
	}
	if output.Categories[2].Status != run.StatusNoMatches {
		t.Errorf("rent status = %s, want no_matches", output.Categories[2].Status)
	}
}

func TestCLIClassifyAggregate(t *testing.T) {
	database, cfg, source := setupTest(t)
	dir := t.TempDir()
	filtered := filepath.Join(dir, "supply_posts.csv")

	out, err := runApp(t, database, cfg, "classify", "--category", "supply", "--output", filtered, source)
	if err != nil {
		t.Fatalf("classify command failed: %v", err)
	}
	var classified ops.ClassifyOutput
	if err := json.Unmarshal([]byte(out), &classified); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if classified.Matched != 1 {
		t.Errorf("matched = %d, want 1", classified.Matched)
	}

	out, err = runApp(t, database, cfg, "aggregate", filtered)
	if err != nil {
		t.Fatalf("aggregate command failed: %v", err)
	}
	var aggregated ops.AggregateOutput
	if err := json.Unmarshal([]byte(out), &aggregated); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if aggregated.Output != filepath.Join(dir, "supply_daily.csv") || aggregated.Days != 1 {
		t.Errorf("output = %+v", aggregated)
	}
}

func TestCLIHistory(t *testing.T) {
	database, cfg, source := setupTest(t)
	if _, err := runApp(t, database, cfg, "run", source); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	out, err := runApp(t, database, cfg, "runs")
	if err != nil {
		t.Fatalf("runs command failed: %v", err)
	}
	var runs ops.RunsOutput
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if runs.Pagination.Total != 1 {
		t.Fatalf("total = %d, want 1", runs.Pagination.Total)
	}
	id := runs.Items[0].ID

	out, err = runApp(t, database, cfg, "show", id)
	if err != nil {
		t.Fatalf("show command failed: %v", err)
	}
	var shown run.Run
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if shown.ID != id || shown.Records != 4 {
		t.Errorf("show = %+v", shown)
	}

	out, err = runApp(t, database, cfg, "daily", "--category", "demand", "--terms", "رز,سكر", "--to", "2025-06-01")
	if err != nil {
		t.Fatalf("daily command failed: %v", err)
	}
	var daily ops.DailyOutput
	if err := json.Unmarshal([]byte(out), &daily); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(daily.Rows) != 1 || daily.Terms[0] != "رز" || daily.Rows[0].Values[1] != 50 {
		t.Errorf("daily = %+v", daily)
	}

	out, err = runApp(t, database, cfg, "report")
	if err != nil {
		t.Fatalf("report command failed: %v", err)
	}
	if !strings.HasPrefix(out, "# Run "+id) {
		t.Errorf("report = %.60q", out)
	}
}

func TestCLIChart(t *testing.T) {
	database, cfg, source := setupTest(t)
	if _, err := runApp(t, database, cfg, "run", source); err != nil {
		t.Fatalf("run command failed: %v", err)
	}
	png := filepath.Join(t.TempDir(), "shares.png")

	out, err := runApp(t, database, cfg, "chart", "--side", "1", "--output", png, "shares")
	if err != nil {
		t.Fatalf("chart command failed: %v", err)
	}
	var output ops.ChartOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Path != png || output.Kind != ops.ChartShares {
		t.Errorf("output = %+v", output)
	}
	if _, err := os.Stat(png); err != nil {
		t.Errorf("chart not written: %v", err)
	}
}

func TestCLIPurgeAndVocab(t *testing.T) {
	database, cfg, source := setupTest(t)
	if _, err := runApp(t, database, cfg, "run", source); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	out, err := runApp(t, database, cfg, "purge", "--older-than", "7d")
	if err != nil {
		t.Fatalf("purge command failed: %v", err)
	}
	var purged ops.PurgeOutput
	if err := json.Unmarshal([]byte(out), &purged); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if purged.Purged != 0 || purged.Message != "No runs to purge" {
		t.Errorf("purge = %+v", purged)
	}

	out, err = runApp(t, database, cfg, "vocab")
	if err != nil {
		t.Fatalf("vocab command failed: %v", err)
	}
	var vocab ops.VocabularyOutput
	if err := json.Unmarshal([]byte(out), &vocab); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(vocab.Terms) != 3 || len(vocab.Categories) != 2 {
		t.Errorf("vocab = %+v", vocab)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	database, cfg, _ := setupTest(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"run missing source", []string{"run", filepath.Join(t.TempDir(), "nope.csv")}, "[FILE_NOT_FOUND]"},
		{"run without source", []string{"run"}, "[INVALID_REQUEST]"},
		{"show not found", []string{"show", "01NOPE"}, "[NOT_FOUND]"},
		{"report without runs", []string{"report"}, "[NOT_FOUND]"},
		{"invalid duration", []string{"purge", "--older-than=invalid"}, "[INVALID_REQUEST]"},
		{"unknown chart kind", []string{"chart", "pie"}, "[INVALID_REQUEST]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, database, cfg, tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"souq"}, expected: false},
		{name: "run command", args: []string{"souq", "run"}, expected: true},
		{name: "serve command", args: []string{"souq", "serve"}, expected: true},
		{name: "help flag", args: []string{"souq", "--help"}, expected: true},
		{name: "short version flag", args: []string{"souq", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"souq", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"souq"}, expected: false},
		{name: "help flag", args: []string{"souq", "--help"}, expected: true},
		{name: "version flag", args: []string{"souq", "--version"}, expected: true},
		{name: "help subcommand", args: []string{"souq", "help"}, expected: true},
		{name: "run command is not help", args: []string{"souq", "run"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHelpOrVersion(tt.args); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
