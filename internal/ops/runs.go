package ops

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/run"
	"github.com/hpungsan/souq/internal/table"
)

// RunsInput contains parameters for the Runs operation.
type RunsInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// RunsOutput contains the result of the Runs operation.
type RunsOutput struct {
	Items      []run.Summary `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// Runs lists recorded runs, newest first.
func Runs(database *sql.DB, input RunsInput) (*RunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.ListRuns(database, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []run.Summary{}
	}

	return &RunsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "started_at_desc",
	}, nil
}

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	ID string // optional, default: latest run
}

// Show returns one run with its category reports.
func Show(database *sql.DB, input ShowInput) (*run.Run, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return db.LatestRun(database)
	}
	return db.GetRun(database, id)
}

// DailyInput contains parameters for the Daily operation.
type DailyInput struct {
	RunID    string   // optional, default: latest run
	Category string   // optional, default: the run's first category
	Terms    []string // optional column subset, in the given order
	From     string   // optional YYYY-MM-DD, inclusive
	To       string   // optional YYYY-MM-DD, inclusive
}

// DailyRow is one day of a DailyOutput. Values are indexed like Terms.
type DailyRow struct {
	Day    string    `json:"day"`
	Values []float64 `json:"values"`
}

// DailyOutput contains the result of the Daily operation.
type DailyOutput struct {
	RunID    string     `json:"run_id"`
	Category string     `json:"category"`
	Terms    []string   `json:"terms"`
	Rows     []DailyRow `json:"rows"`
}

// Daily returns the stored daily percentages of one category of a run.
func Daily(database *sql.DB, input DailyInput) (*DailyOutput, error) {
	from, to, err := parseRange(input.From, input.To)
	if err != nil {
		return nil, err
	}
	r, err := Show(database, ShowInput{ID: input.RunID})
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		if len(r.Categories) == 0 {
			return nil, errors.NewNotFound(r.ID + " categories")
		}
		category = r.Categories[0].Category
	}

	t, err := db.DailyTable(database, r.ID, category)
	if err != nil {
		return nil, err
	}
	sub, err := selectTerms(t, input.Terms)
	if err != nil {
		return nil, err
	}

	out := &DailyOutput{RunID: r.ID, Category: category, Terms: sub.Terms, Rows: []DailyRow{}}
	for _, row := range sub.Between(from, to) {
		out.Rows = append(out.Rows, DailyRow{Day: row.Day.String(), Values: row.Values})
	}
	return out, nil
}

// selectTerms returns t restricted to terms, in the given order. No terms
// returns t unchanged.
func selectTerms(t *table.DailyTable, terms []string) (*table.DailyTable, error) {
	if len(terms) == 0 {
		return t, nil
	}
	idx := make([]int, len(terms))
	for i, term := range terms {
		idx[i] = t.Column(term)
		if idx[i] < 0 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown column %q", term))
		}
	}
	out := &table.DailyTable{Terms: append([]string(nil), terms...)}
	for _, row := range t.Rows {
		values := make([]float64, len(idx))
		for i, j := range idx {
			values[i] = row.Values[j]
		}
		out.Rows = append(out.Rows, table.DailyTableRow{Day: row.Day, Values: values})
	}
	return out, nil
}
