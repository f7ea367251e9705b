package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/run"
	"github.com/hpungsan/souq/internal/table"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	RunID string // optional, default: latest run
	Path  string // optional, default: ~/.souq/exports/souq-<run id>.xlsx
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	RunID      string `json:"run_id"`
	Sheets     int    `json:"sheets"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes the stored daily tables of a run as an xlsx workbook with one
// sheet per category.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	r, err := Show(database, ShowInput{ID: input.RunID})
	if err != nil {
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, fmt.Sprintf("souq-%s.xlsx", r.ID))
	}
	if filepath.Ext(exportPath) != ".xlsx" {
		return nil, errors.NewInvalidRequest("path must have .xlsx extension")
	}

	// Validate ALL paths (both user-provided and default)
	dirs, err := exportDirs(cfg)
	if err != nil {
		return nil, err
	}
	if err := table.ValidateExportPath(exportPath, dirs); err != nil {
		return nil, err
	}

	sheets, err := Sheets(ctx, database, r)
	if err != nil {
		return nil, err
	}

	if err := table.WriteFileAtomic(exportPath, func(w io.Writer) error {
		return table.WriteWorkbook(w, sheets)
	}); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		RunID:      r.ID,
		Sheets:     len(sheets),
		ExportedAt: time.Now().Unix(),
	}, nil
}

// Sheets loads the stored daily table of every category of r, one sheet each.
func Sheets(ctx context.Context, database *sql.DB, r *run.Run) ([]table.Sheet, error) {
	sheets := make([]table.Sheet, 0, len(r.Categories))
	for _, c := range r.Categories {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("export")
		default:
		}
		t, err := db.DailyTable(database, r.ID, c.Category)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, table.Sheet{Name: c.Category, Table: t})
	}
	return sheets, nil
}
