package web

import (
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/souq/internal/chart"
	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/ops"
	"github.com/hpungsan/souq/internal/table"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	cache    *table.Cache
	renderer *Renderer
}

// HandleRuns handles GET /runs: list recorded runs, newest first.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Runs(h.db, ops.RunsInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "runs", RunsPageData{
		PageData:   h.renderer.page("Runs"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Message:    r.URL.Query().Get("message"),
	})
}

// HandleStartRun handles POST /runs: run the pipeline over a source table.
func (h *Handlers) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.RunInput{
		Source:     strings.TrimSpace(r.FormValue("source")),
		OutputDir:  strings.TrimSpace(r.FormValue("output_dir")),
		Categories: splitList(r.FormValue("categories")),
		Cache:      h.cache,
	}
	result, err := ops.Run(r.Context(), h.db, h.cfg, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, result)
		return
	}
	http.Redirect(w, r, "/runs/"+url.PathEscape(result.ID), http.StatusSeeOther)
}

// HandleDetail handles GET /runs/{id}: the run report with a chart picker.
// The id "latest" selects the most recent run.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := runIDParam(r)

	result, err := ops.Show(h.db, ops.ShowInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	report, err := ops.Report(h.db, ops.ReportInput{ID: result.ID})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	q := r.URL.Query()
	form := ChartForm{
		Kind:  q.Get("kind"),
		Term:  q.Get("term"),
		From:  q.Get("from"),
		To:    q.Get("to"),
		Year:  q.Get("year"),
		Month: q.Get("month"),
		Side:  q.Get("side"),
		TopN:  q.Get("top_n"),
	}

	data := DetailPageData{
		PageData:   h.renderer.page("Run " + result.ID),
		Run:        result,
		ReportHTML: renderMarkdown(report.Markdown),
		ChartKinds: ops.ChartKinds,
		Chart:      form,
	}
	for _, c := range result.Categories {
		data.CategoryList = append(data.CategoryList, c.Category)
	}
	if form.Kind != "" {
		data.ChartURL = chartURL(result.ID, form)
	} else if len(result.Categories) >= 2 {
		for side := range 2 {
			data.SharesURLs = append(data.SharesURLs, chartURL(result.ID, ChartForm{Kind: ops.ChartShares, Side: strconv.Itoa(side)}))
		}
	}

	h.renderer.renderPage(w, "detail", data)
}

// HandleDaily handles GET /runs/{id}/daily: one category's stored table.
func (h *Handlers) HandleDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.Daily(h.db, ops.DailyInput{
		RunID:    runIDParam(r),
		Category: q.Get("category"),
		Terms:    splitList(q.Get("terms")),
		From:     q.Get("from"),
		To:       q.Get("to"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "daily", DailyPageData{
		PageData: h.renderer.page(fmt.Sprintf("%s daily percentages", result.Category)),
		Daily:    result,
	})
}

// HandleExport handles GET /runs/{id}/export: download the run as xlsx.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Show(h.db, ops.ShowInput{ID: runIDParam(r)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	sheets, err := ops.Sheets(r.Context(), h.db, result)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := table.WriteWorkbook(&buf, sheets); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="souq-%s.xlsx"`, result.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleChart handles GET /charts/{kind}.png: render a chart of a run.
func (h *Handlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	kind, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(r.URL.Path))
		return
	}

	q := r.URL.Query()
	input := ops.ChartInput{
		Kind:  kind,
		RunID: q.Get("run_id"),
		Term:  q.Get("term"),
		From:  q.Get("from"),
		To:    q.Get("to"),
	}
	var err error
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"year", &input.Year},
		{"month", &input.Month},
		{"side", &input.Side},
		{"top_n", &input.TopN},
	} {
		if *p.dst, err = intParam(q, p.name); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	fig, err := ops.BuildChart(h.db, h.cache, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := chart.WritePNG(&buf, fig.Plot, fig.Width, fig.Height); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandlePurge handles POST /runs/purge: permanently delete old runs.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	age, err := ops.ParseAge(r.FormValue("older_than"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Purge(r.Context(), h.db, ops.PurgeInput{OlderThan: age})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/runs?message="+url.QueryEscape(result.Message), http.StatusSeeOther)
}

// runIDParam returns the {id} path value; "latest" maps to the empty ID.
func runIDParam(r *http.Request) string {
	id := r.PathValue("id")
	if id == "latest" {
		return ""
	}
	return id
}

// chartURL builds the image URL for a chart of run id.
func chartURL(id string, f ChartForm) string {
	q := url.Values{}
	q.Set("run_id", id)
	for name, v := range map[string]string{
		"term":  f.Term,
		"from":  f.From,
		"to":    f.To,
		"year":  f.Year,
		"month": f.Month,
		"side":  f.Side,
		"top_n": f.TopN,
	} {
		if v != "" {
			q.Set(name, v)
		}
	}
	return "/charts/" + url.PathEscape(f.Kind) + ".png?" + q.Encode()
}

// intParam parses an optional integer query parameter.
func intParam(q url.Values, name string) (int, error) {
	s := strings.TrimSpace(q.Get(name))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
