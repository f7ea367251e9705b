package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/ops"
)

const rawPosts = "date,text\n" +
	"2025-06-01 09:00:00+03:00,مطلوب سكر سكر طحين\n" +
	"2025-06-01 10:00:00+03:00,مطلوب رز\n" +
	"2025-06-02 10:00:00+03:00,سكر للبيع\n" +
	"2025-06-02 12:00:00+03:00,مطلوب سكر رز\n"

type testServer struct {
	h       *Handlers
	handler http.Handler
	dir     string
}

func setupTest(t *testing.T) *testServer {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Vocabulary = []string{"سكر", "طحين", "رز"}

	h, err := newHandlers(database, cfg, "test")
	if err != nil {
		t.Fatalf("newHandlers: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}
	return &testServer{h: h, handler: routes(h, staticSub), dir: tmpDir}
}

// seedRun runs the pipeline over rawPosts and returns the run ID.
func seedRun(t *testing.T, s *testServer) string {
	t.Helper()
	source := filepath.Join(s.dir, "raw.csv")
	if err := os.WriteFile(source, []byte(rawPosts), 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	out, err := ops.Run(context.Background(), s.h.db, s.h.cfg, ops.RunInput{
		Source:    source,
		OutputDir: filepath.Join(s.dir, "data"),
		Cache:     s.h.cache,
	})
	if err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return out.ID
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// --- HandleRuns ---

func TestHandleRuns_List(t *testing.T) {
	s := setupTest(t)
	id := seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, id) {
		t.Error("expected run ID in response")
	}
	if !strings.Contains(body, "2/2") {
		t.Error("expected succeeded/total categories")
	}
}

func TestHandleRuns_Empty(t *testing.T) {
	s := setupTest(t)

	rec := s.do(httptest.NewRequest("GET", "/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No runs recorded yet") {
		t.Error("expected empty state message")
	}
}

func TestHandleRuns_JSON(t *testing.T) {
	s := setupTest(t)
	seedRun(t, s)

	req := httptest.NewRequest("GET", "/runs?limit=notanumber", nil)
	req.Header.Set("Accept", "application/json")
	rec := s.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.RunsOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Pagination.Total != 1 || out.Pagination.Limit != ops.DefaultListLimit {
		t.Errorf("pagination = %+v", out.Pagination)
	}
}

func TestRoot_RedirectsToRuns(t *testing.T) {
	s := setupTest(t)

	rec := s.do(httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/runs" {
		t.Errorf("Location = %q, want /runs", loc)
	}
}

// --- HandleStartRun ---

func TestHandleStartRun_Redirects(t *testing.T) {
	s := setupTest(t)
	source := filepath.Join(s.dir, "posts.csv")
	if err := os.WriteFile(source, []byte(rawPosts), 0600); err != nil {
		t.Fatal(err)
	}

	form := url.Values{
		"source":     {source},
		"output_dir": {filepath.Join(s.dir, "out")},
		"categories": {"demand"},
	}
	req := httptest.NewRequest("POST", "/runs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Location"), "/runs/") {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	if _, err := os.Stat(filepath.Join(s.dir, "out", "demand_daily.csv")); err != nil {
		t.Errorf("daily table not written: %v", err)
	}
}

func TestHandleStartRun_MissingSourceJSON(t *testing.T) {
	s := setupTest(t)

	req := httptest.NewRequest("POST", "/runs", strings.NewReader("source="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := s.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body.Error.Code)
	}
}

// --- HandleDetail ---

func TestHandleDetail_RendersReport(t *testing.T) {
	s := setupTest(t)
	id := seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/runs/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Run "+id+"</h1>") {
		t.Error("expected rendered report heading")
	}
	if !strings.Contains(body, "<table>") {
		t.Error("expected markdown table rendered as HTML")
	}
	if !strings.Contains(body, "/charts/shares.png?") {
		t.Error("expected default shares charts")
	}
}

func TestHandleDetail_LatestAndChartForm(t *testing.T) {
	s := setupTest(t)
	id := seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/runs/latest?kind=daily&term="+url.QueryEscape("سكر"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/charts/daily.png?") {
		t.Error("expected daily chart image")
	}
	if !strings.Contains(body, id) {
		t.Error("expected latest run ID")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	s := setupTest(t)

	rec := s.do(httptest.NewRequest("GET", "/runs/01NOPE", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error-message") {
		t.Error("expected error page")
	}
}

// --- HandleDaily ---

func TestHandleDaily_HTMLAndJSON(t *testing.T) {
	s := setupTest(t)
	id := seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/runs/"+id+"/daily?category=demand", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2025-06-01") || !strings.Contains(body, "50.0") {
		t.Error("expected daily rows in table")
	}

	req := httptest.NewRequest("GET", "/runs/"+id+"/daily?category=demand&from=2025-06-02&terms="+url.QueryEscape("رز"), nil)
	req.Header.Set("Accept", "application/json")
	rec = s.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.DailyOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Rows) != 1 || out.Rows[0].Day != "2025-06-02" || out.Rows[0].Values[0] != 50 {
		t.Errorf("rows = %+v", out.Rows)
	}
}

func TestHandleDaily_UnknownCategory(t *testing.T) {
	s := setupTest(t)
	id := seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/runs/"+id+"/daily?category=rent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- HandleChart ---

func TestHandleChart_PNG(t *testing.T) {
	s := setupTest(t)
	seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/charts/daily.png?term="+url.QueryEscape("سكر"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG body")
	}
}

func TestHandleChart_Errors(t *testing.T) {
	s := setupTest(t)
	seedRun(t, s)

	tests := []struct {
		path string
		want int
	}{
		{"/charts/daily.svg", http.StatusNotFound},
		{"/charts/pie.png", http.StatusBadRequest},
		{"/charts/daily.png", http.StatusBadRequest},
		{"/charts/monthly.png?term=x&year=2025&month=june", http.StatusBadRequest},
		{"/charts/shares.png?from=2024-01-01&to=2024-01-31", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		req.Header.Set("Accept", "application/json")
		rec := s.do(req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

// --- HandleExport ---

func TestHandleExport_Workbook(t *testing.T) {
	s := setupTest(t)
	id := seedRun(t, s)

	rec := s.do(httptest.NewRequest("GET", "/runs/"+id+"/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "souq-"+id+".xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[1] != "demand" || sheets[2] != "supply" {
		t.Errorf("sheets = %v", sheets)
	}
}

// --- HandlePurge ---

func TestHandlePurge_RequiresConfirm(t *testing.T) {
	s := setupTest(t)

	req := httptest.NewRequest("POST", "/runs/purge", strings.NewReader("older_than=7d"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePurge_JSON(t *testing.T) {
	s := setupTest(t)
	seedRun(t, s)
	if _, err := s.h.db.Exec(`UPDATE runs SET started_at = started_at - 40*86400`); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/runs/purge", strings.NewReader("confirm=true&older_than=30d"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := s.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out ops.PurgeOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Purged != 1 {
		t.Errorf("purged = %d, want 1", out.Purged)
	}
}

func TestHandlePurge_RedirectsWithMessage(t *testing.T) {
	s := setupTest(t)

	req := httptest.NewRequest("POST", "/runs/purge", strings.NewReader("confirm=true&older_than=1d"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "message=No+runs+to+purge") {
		t.Errorf("Location = %q", loc)
	}
}

// --- Helpers ---

func TestSecurityHeaders(t *testing.T) {
	s := setupTest(t)

	rec := s.do(httptest.NewRequest("GET", "/static/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options header")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("expected CSP header")
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4200: "-4,200"}
	for n, want := range tests {
		if got := formatCount(n); got != want {
			t.Errorf("formatCount(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestDuration(t *testing.T) {
	if got := duration(100, 190); got != "1m30s" {
		t.Errorf("duration = %q, want 1m30s", got)
	}
	if got := duration(100, 0); got != "-" {
		t.Errorf("duration = %q, want -", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" demand, ,supply ")
	if len(got) != 2 || got[0] != "demand" || got[1] != "supply" {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("expected nil for empty input")
	}
}
