package ops

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/run"
	"github.com/hpungsan/souq/internal/table"
)

// RunInput contains parameters for the Run operation.
type RunInput struct {
	Source     string       // required: raw table with "date" and "text" columns
	OutputDir  string       // optional, default: config output_dir or ~/.souq/data
	Categories []string     // optional subset of the configured categories
	Cache      *table.Cache // optional, invalidated for every rewritten daily table
}

// RunOutput contains the result of the Run operation.
type RunOutput struct {
	ID           string               `json:"id"`
	Source       string               `json:"source"`
	Records      int                  `json:"records"`
	Skipped      int                  `json:"skipped"`
	SkippedLines []int                `json:"skipped_lines,omitempty"`
	Categories   []run.CategoryResult `json:"categories"`
	Unreachable  []string             `json:"unreachable_terms,omitempty"`
	OK           bool                 `json:"ok"`
}

// Run loads the source once and runs classify then aggregate for each
// configured category. Every category gets a report; a failure in one
// category never stops the others. The run is recorded when database is
// non-nil.
func Run(ctx context.Context, database *sql.DB, cfg *config.Config, input RunInput) (*RunOutput, error) {
	p, err := newPipeline(cfg, input.Categories)
	if err != nil {
		return nil, err
	}
	loc, err := p.cfg.Location()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	outDir, err := resolveDir(input.OutputDir, p.cfg.ResolveOutputDir)
	if err != nil {
		return nil, err
	}

	id, err := run.NewID()
	if err != nil {
		return nil, err
	}
	logger := slog.With(slog.String("run", id))
	started := time.Now()

	f, err := openSource(input.Source)
	if err != nil {
		return nil, err
	}
	loaded, loadErr := table.LoadRecords(f, input.Source, loc)
	f.Close()
	if loadErr != nil && !errors.Is(loadErr, errors.ErrEmptyInput) {
		return nil, loadErr
	}

	r := &run.Run{ID: id, Source: input.Source, StartedAt: started.Unix()}
	out := &RunOutput{ID: id, Source: input.Source, Unreachable: p.vocab.Unreachable()}
	if loaded != nil {
		r.Records, r.Skipped = len(loaded.Records), loaded.Skipped
		out.SkippedLines = loaded.SkippedLines
		if loaded.Skipped > 0 {
			logger.Warn("skipped rows with unparseable timestamps",
				slog.Int("skipped", loaded.Skipped), slog.Any("lines", loaded.SkippedLines))
			for _, m := range loaded.Malformed {
				logger.Debug("malformed record", slog.String("error", m.Message))
			}
		}
	}
	if len(out.Unreachable) > 0 {
		logger.Warn("vocabulary terms can never match a whitespace token", slog.Any("terms", out.Unreachable))
	}

	tables := make(map[string]*table.DailyTable)
	for _, cat := range p.categories {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("run")
		default:
		}

		var (
			res run.CategoryResult
			t   *table.DailyTable
		)
		if loadErr != nil {
			res = finish(run.CategoryResult{Category: cat.Name, Terms: p.vocab.Terms()}, loadErr)
		} else {
			res, t = p.runCategory(loaded.Records, cat, outDir)
		}
		if t != nil {
			tables[cat.Name] = t
		}
		for _, path := range clearStale(outDir, cat.Name, res) {
			logger.Warn("stale table not removed", slog.String("path", path))
		}
		if input.Cache != nil {
			_, dailyPath := artifactPaths(outDir, cat.Name)
			input.Cache.Invalidate(dailyPath)
		}

		attrs := []any{
			slog.String("category", cat.Name),
			slog.String("status", string(res.Status)),
			slog.Int("matched", res.Matched),
			slog.Int("days", res.Days),
		}
		if res.Status == run.StatusOK {
			logger.Info("category complete", attrs...)
		} else {
			logger.Warn(res.Message, attrs...)
		}
		r.Categories = append(r.Categories, res)
	}
	r.FinishedAt = time.Now().Unix()

	if database != nil {
		if err := db.SaveRun(database, r, tables); err != nil {
			return nil, err
		}
	}

	out.Records, out.Skipped = r.Records, r.Skipped
	out.Categories = r.Categories
	out.OK = r.OK()
	return out, nil
}

// runCategory classifies records into cat, writes the filtered table,
// aggregates it and writes the daily table. The daily table is nil when the
// category stopped before aggregation.
func (p *pipeline) runCategory(records []market.Record, cat market.Category, outDir string) (run.CategoryResult, *table.DailyTable) {
	res := run.CategoryResult{Category: cat.Name, Terms: p.vocab.Terms()}

	filtered, err := market.Classify(records, cat)
	if err != nil {
		return finish(res, err), nil
	}
	res.Matched = len(filtered)

	filteredPath, dailyPath := artifactPaths(outDir, cat.Name)
	if err := table.WriteFileAtomic(filteredPath, func(w io.Writer) error {
		return table.WriteFiltered(w, filtered)
	}); err != nil {
		return finish(res, err), nil
	}
	res.FilteredPath = filteredPath

	rows, aggErr := market.Aggregate(filtered, p.vocab, p.rounding)
	if aggErr != nil && !errors.Is(aggErr, errors.ErrNoVocabularyOverlap) {
		return finish(res, aggErr), nil
	}

	// No overlap still writes a header-only table so consumers see the columns.
	t := table.NewDailyTable(p.vocab, rows)
	if err := table.WriteFileAtomic(dailyPath, func(w io.Writer) error {
		return table.WriteDaily(w, t)
	}); err != nil {
		return finish(res, err), nil
	}
	res.DailyPath = dailyPath
	res.Days = len(rows)
	return finish(res, aggErr), t
}

// artifactPaths returns where a category's filtered and daily tables live.
func artifactPaths(outDir, category string) (filtered, daily string) {
	name := table.SanitizeForFilename(category)
	return filepath.Join(outDir, name+"_posts.csv"), filepath.Join(outDir, name+"_daily.csv")
}

// clearStale removes tables left by an earlier run for artifacts this run did
// not write, and returns the paths it failed to remove.
func clearStale(outDir, category string, res run.CategoryResult) []string {
	filtered, daily := artifactPaths(outDir, category)
	var failed []string
	for _, p := range []struct{ path, written string }{
		{filtered, res.FilteredPath},
		{daily, res.DailyPath},
	} {
		if p.written != "" {
			continue
		}
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			failed = append(failed, p.path)
		}
	}
	return failed
}

func finish(res run.CategoryResult, err error) run.CategoryResult {
	res.Status = run.StatusFor(err)
	res.Message = statusMessage(err)
	return res
}
