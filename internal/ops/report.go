package ops

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/souq/internal/chart"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/run"
)

// reportTopTerms is the number of leading terms listed per category.
const reportTopTerms = 5

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	ID string // optional, default: latest run
}

// ReportOutput contains the result of the Report operation.
type ReportOutput struct {
	ID       string `json:"id"`
	Markdown string `json:"markdown"`
}

// Report renders a run as a markdown document: run metadata, the status of
// each category and the leading terms of each category over the whole run.
func Report(database *sql.DB, input ReportInput) (*ReportOutput, error) {
	r, err := Show(database, ShowInput{ID: input.ID})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", r.ID)
	fmt.Fprintf(&b, "- **Source:** `%s`\n", r.Source)
	fmt.Fprintf(&b, "- **Started:** %s\n", time.Unix(r.StartedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration:** %ds\n", r.FinishedAt-r.StartedAt)
	fmt.Fprintf(&b, "- **Records:** %d (%d skipped)\n\n", r.Records, r.Skipped)

	b.WriteString("## Categories\n\n")
	b.WriteString("| Category | Status | Matched | Days | Message |\n")
	b.WriteString("|---|---|---:|---:|---|\n")
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s |\n",
			escapeCell(c.Category), c.Status, c.Matched, c.Days, escapeCell(c.Message))
	}

	for _, c := range r.Categories {
		if c.Status != run.StatusOK {
			continue
		}
		t, err := db.DailyTable(database, r.ID, c.Category)
		if err != nil {
			return nil, err
		}
		shares, err := chart.Shares(t, market.Day{}, market.Day{})
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", c.Category)
		if n := len(t.Rows); n > 0 {
			fmt.Fprintf(&b, "%s to %s\n\n", t.Rows[0].Day, t.Rows[n-1].Day)
		}
		for i, s := range shares {
			if i == reportTopTerms {
				break
			}
			fmt.Fprintf(&b, "%d. %s: %.1f%%\n", i+1, s.Term, s.Percent)
		}
	}

	return &ReportOutput{ID: r.ID, Markdown: b.String()}, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
