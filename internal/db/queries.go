package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/run"
	"github.com/hpungsan/souq/internal/table"
)

// SaveRun stores a run, its category results and the daily tables of the
// categories that produced one, in a single transaction. tables is keyed by
// category name.
func SaveRun(db *sql.DB, r *run.Run, tables map[string]*table.DailyTable) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, source, records, skipped, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Source, r.Records, r.Skipped, r.StartedAt, r.FinishedAt)
	if err != nil {
		return errors.NewInternal(err)
	}

	catStmt, err := tx.Prepare(`
		INSERT INTO category_results (
			run_id, position, category, status, message, matched, days,
			terms_json, filtered_path, daily_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer catStmt.Close()

	dayStmt, err := tx.Prepare(`
		INSERT INTO daily_percentages (run_id, category, day, term_index, term, percent)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer dayStmt.Close()

	for i, c := range r.Categories {
		terms := c.Terms
		if terms == nil {
			terms = []string{}
		}
		termsJSON, err := json.Marshal(terms)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := catStmt.Exec(
			r.ID, i, c.Category, string(c.Status), c.Message, c.Matched, c.Days,
			string(termsJSON), toNullString(c.FilteredPath), toNullString(c.DailyPath),
		); err != nil {
			return errors.NewInternal(err)
		}

		t := tables[c.Category]
		if t == nil {
			continue
		}
		// Only non-zero cells are stored; the terms list restores the dense table.
		for _, row := range t.Rows {
			for j, v := range row.Values {
				if v == 0 {
					continue
				}
				if _, err := dayStmt.Exec(r.ID, c.Category, row.Day.String(), j, t.Terms[j], v); err != nil {
					return errors.NewInternal(err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run with its category results.
func GetRun(db *sql.DB, id string) (*run.Run, error) {
	r := &run.Run{}
	err := db.QueryRow(`
		SELECT id, source, records, skipped, started_at, finished_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Source, &r.Records, &r.Skipped, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	cats, err := categoryResults(db, id)
	if err != nil {
		return nil, err
	}
	r.Categories = cats
	return r, nil
}

// LatestRun retrieves the most recently started run.
func LatestRun(db *sql.DB) (*run.Run, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("latest run")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return GetRun(db, id)
}

func categoryResults(db *sql.DB, runID string) ([]run.CategoryResult, error) {
	rows, err := db.Query(`
		SELECT category, status, message, matched, days, terms_json, filtered_path, daily_path
		FROM category_results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []run.CategoryResult
	for rows.Next() {
		var (
			c            run.CategoryResult
			status       string
			termsJSON    string
			filteredPath sql.NullString
			dailyPath    sql.NullString
		)
		if err := rows.Scan(&c.Category, &status, &c.Message, &c.Matched, &c.Days,
			&termsJSON, &filteredPath, &dailyPath); err != nil {
			return nil, errors.NewInternal(err)
		}
		c.Status = run.Status(status)
		c.FilteredPath = filteredPath.String
		c.DailyPath = dailyPath.String
		if err := json.Unmarshal([]byte(termsJSON), &c.Terms); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("decode terms of %s/%s: %w", runID, c.Category, err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ListRuns returns run summaries, newest first, and the total number of runs.
func ListRuns(db *sql.DB, limit, offset int) ([]run.Summary, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.Query(`
		SELECT r.id, r.source, r.records, r.skipped, r.started_at, r.finished_at,
			COUNT(c.category),
			COALESCE(SUM(CASE WHEN c.status = 'ok' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN category_results c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []run.Summary
	for rows.Next() {
		var s run.Summary
		if err := rows.Scan(&s.ID, &s.Source, &s.Records, &s.Skipped, &s.StartedAt, &s.FinishedAt,
			&s.Categories, &s.Succeeded); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// DailyTable rebuilds the dense daily table of one category of a run.
// A category that produced no rows yields a header-only table.
func DailyTable(db *sql.DB, runID, category string) (*table.DailyTable, error) {
	r, err := GetRun(db, runID)
	if err != nil {
		return nil, err
	}
	c := r.Category(category)
	if c == nil {
		return nil, errors.NewNotFound(fmt.Sprintf("%s/%s", runID, category))
	}

	t := &table.DailyTable{Terms: c.Terms}
	rows, err := db.Query(`
		SELECT day, term_index, percent
		FROM daily_percentages
		WHERE run_id = ? AND category = ?
		ORDER BY day, term_index
	`, runID, category)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dayStr  string
			index   int
			percent float64
		)
		if err := rows.Scan(&dayStr, &index, &percent); err != nil {
			return nil, errors.NewInternal(err)
		}
		d, err := market.ParseDay(dayStr)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if index < 0 || index >= len(t.Terms) {
			return nil, errors.NewInternal(fmt.Errorf("term index %d out of range for %s/%s", index, runID, category))
		}
		if n := len(t.Rows); n == 0 || t.Rows[n-1].Day != d {
			t.Rows = append(t.Rows, table.DailyTableRow{Day: d, Values: make([]float64, len(t.Terms))})
		}
		t.Rows[len(t.Rows)-1].Values[index] = percent
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return t, nil
}

// PurgeOlderThan permanently deletes runs started before cutoff (Unix
// seconds) together with their category results and daily rows.
func PurgeOlderThan(db *sql.DB, cutoff int64) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	sub := `SELECT id FROM runs WHERE started_at < ?`
	if _, err := tx.Exec(`DELETE FROM daily_percentages WHERE run_id IN (`+sub+`)`, cutoff); err != nil {
		return 0, errors.NewInternal(err)
	}
	if _, err := tx.Exec(`DELETE FROM category_results WHERE run_id IN (`+sub+`)`, cutoff); err != nil {
		return 0, errors.NewInternal(err)
	}
	result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
