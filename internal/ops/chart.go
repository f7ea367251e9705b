package ops

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/hpungsan/souq/internal/chart"
	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/run"
	"github.com/hpungsan/souq/internal/table"
)

// Chart kinds.
const (
	ChartDaily       = "daily"
	ChartDifference  = "difference"
	ChartShares      = "shares"
	ChartCorrelation = "correlation"
	ChartMonthly     = "monthly"
)

// ChartKinds lists the supported chart kinds.
var ChartKinds = []string{ChartDaily, ChartDifference, ChartShares, ChartCorrelation, ChartMonthly}

// ChartInput contains parameters for the chart operations.
//
// Tables come from explicit CSV paths when DemandPath is set, otherwise from
// a recorded run (RunID, default latest), whose first two categories are
// compared.
type ChartInput struct {
	Kind       string // required, one of ChartKinds
	RunID      string // optional, default: latest run
	DemandPath string // optional daily table; overrides the run
	SupplyPath string // optional daily table compared against DemandPath
	Term       string // required for daily, difference and monthly
	From       string // optional YYYY-MM-DD
	To         string // optional YYYY-MM-DD
	Year       int    // required for monthly
	Month      int    // required for monthly, 1-12
	Side       int    // shares and correlation: 0 for the first table, 1 for the second
	TopN       int    // correlation, default: 10
	Output     string // optional, default: <chart_dir>/<generated name>.png
}

// ChartOutput contains the result of the Chart operation.
type ChartOutput struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Figure is a rendered chart with its suggested file name and size.
type Figure struct {
	Plot   *plot.Plot
	Name   string
	Width  vg.Length
	Height vg.Length
}

// BuildChart computes and renders the requested chart. cache, when non-nil,
// serves table loads.
func BuildChart(database *sql.DB, cache *table.Cache, input ChartInput) (*Figure, error) {
	if !slices.Contains(ChartKinds, input.Kind) {
		return nil, errUnknownKind(input.Kind)
	}
	from, to, err := parseRange(input.From, input.To)
	if err != nil {
		return nil, err
	}
	names, tables, err := chartTables(database, cache, input)
	if err != nil {
		return nil, err
	}
	term := strings.TrimSpace(input.Term)
	needTerm := func() error {
		if term == "" {
			return errors.NewInvalidRequest("term is required")
		}
		return nil
	}
	rangeText := chart.RangeText(from, to)
	safeTerm := table.SanitizeForFilename(term)

	fig := &Figure{Width: chart.Width, Height: chart.Height}
	switch input.Kind {
	case ChartDaily:
		if err := needTerm(); err != nil {
			return nil, err
		}
		a, err := chart.Series(tables[0], term, from, to)
		if err != nil {
			return nil, err
		}
		b, err := chart.Series(tables[1], term, from, to)
		if err != nil {
			return nil, err
		}
		fig.Plot, err = chart.DailyPlot(term, names, a, b, from, to)
		fig.Name = fmt.Sprintf("daily_%s_%s.png", safeTerm, rangeText)
		if err != nil {
			return nil, err
		}

	case ChartDifference:
		if err := needTerm(); err != nil {
			return nil, err
		}
		diff, err := chart.Difference(tables[0], tables[1], term, from, to)
		if err != nil {
			return nil, err
		}
		fig.Plot, err = chart.DifferencePlot(term, names, diff, from, to)
		fig.Name = fmt.Sprintf("difference_%s_%s.png", safeTerm, rangeText)
		if err != nil {
			return nil, err
		}

	case ChartShares:
		side, err := chartSide(input.Side)
		if err != nil {
			return nil, err
		}
		shares, err := chart.Shares(tables[side], from, to)
		if err != nil {
			return nil, err
		}
		fig.Plot, err = chart.SharesPlot(fmt.Sprintf("%s term shares (%s)", names[side], rangeText), shares)
		fig.Name = fmt.Sprintf("shares_%s_%s.png", table.SanitizeForFilename(names[side]), rangeText)
		if err != nil {
			return nil, err
		}

	case ChartCorrelation:
		side, err := chartSide(input.Side)
		if err != nil {
			return nil, err
		}
		n := input.TopN
		if n <= 0 {
			n = chart.DefaultTopN
		}
		terms, m, err := chart.Correlation(tables[side], n)
		if err != nil {
			return nil, err
		}
		fig.Plot, err = chart.CorrelationPlot(fmt.Sprintf("Correlation of top %d terms (%s)", n, names[side]), terms, m)
		fig.Name = fmt.Sprintf("correlation_top%d_%s.png", n, table.SanitizeForFilename(names[side]))
		fig.Width, fig.Height = chart.SquareWidth, chart.SquareHeight
		if err != nil {
			return nil, err
		}

	case ChartMonthly:
		if err := needTerm(); err != nil {
			return nil, err
		}
		if input.Year <= 0 || input.Month < 1 || input.Month > 12 {
			return nil, errors.NewInvalidRequest("monthly chart needs year and month (1-12)")
		}
		month := time.Month(input.Month)
		pairs, err := chart.Monthly(tables[0], tables[1], term, input.Year, month)
		if err != nil {
			return nil, err
		}
		fig.Plot, err = chart.MonthlyPlot(term, names, input.Year, month, pairs)
		fig.Name = fmt.Sprintf("daily_bar_%s_%d_%02d.png", safeTerm, input.Year, input.Month)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errUnknownKind(input.Kind)
	}
	return fig, nil
}

// Chart renders the requested chart to a PNG file.
func Chart(database *sql.DB, cfg *config.Config, cache *table.Cache, input ChartInput) (*ChartOutput, error) {
	fig, err := BuildChart(database, cache, input)
	if err != nil {
		return nil, err
	}
	output := input.Output
	if output == "" {
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
		dir, err := resolveDir("", cfg.ResolveChartDir)
		if err != nil {
			return nil, err
		}
		output = filepath.Join(dir, fig.Name)
	}
	if filepath.Ext(output) != ".png" {
		return nil, errors.NewInvalidRequest("output must have .png extension")
	}
	if err := chart.Save(fig.Plot, output, fig.Width, fig.Height); err != nil {
		return nil, err
	}
	return &ChartOutput{Kind: input.Kind, Path: output}, nil
}

func errUnknownKind(kind string) error {
	return errors.NewInvalidRequest(fmt.Sprintf("unknown chart kind %q (want one of %s)",
		kind, strings.Join(ChartKinds, ", ")))
}

func chartSide(side int) (int, error) {
	if side != 0 && side != 1 {
		return 0, errors.NewInvalidRequest("side must be 0 or 1")
	}
	return side, nil
}

// chartTables resolves the two compared tables and their display names.
func chartTables(database *sql.DB, cache *table.Cache, input ChartInput) ([2]string, [2]*table.DailyTable, error) {
	var (
		names  [2]string
		tables [2]*table.DailyTable
	)
	if input.DemandPath != "" {
		if input.SupplyPath == "" {
			return names, tables, errors.NewInvalidRequest("supply table path is required with a demand table path")
		}
		for i, path := range []string{input.DemandPath, input.SupplyPath} {
			t, err := loadTable(cache, path)
			if err != nil {
				return names, tables, err
			}
			tables[i] = t
		}
		return [2]string{"demand", "supply"}, tables, nil
	}

	if database == nil {
		return names, tables, errors.NewInvalidRequest("no run history available; pass table paths")
	}
	r, err := Show(database, ShowInput{ID: input.RunID})
	if err != nil {
		return names, tables, err
	}
	if len(r.Categories) < 2 {
		return names, tables, errors.NewInvalidRequest(fmt.Sprintf("run %s has fewer than two categories", r.ID))
	}
	for i := range tables {
		c := r.Categories[i]
		names[i] = c.Category
		t, err := runTable(database, cache, r, c)
		if err != nil {
			return names, tables, err
		}
		tables[i] = t
	}
	return names, tables, nil
}

// runTable returns the copy of a category's daily table stored with the run.
// The table file at DailyPath is shared by later runs into the same output
// directory, so it is never read here.
func runTable(database *sql.DB, cache *table.Cache, r *run.Run, c run.CategoryResult) (*table.DailyTable, error) {
	load := func() (*table.DailyTable, error) {
		return db.DailyTable(database, r.ID, c.Category)
	}
	if cache == nil {
		return load()
	}
	return cache.Recorded(r.ID+"/"+c.Category, load)
}

func loadTable(cache *table.Cache, path string) (*table.DailyTable, error) {
	if cache != nil {
		return cache.Get(path)
	}
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return table.ReadDaily(f, path)
}
