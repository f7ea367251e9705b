package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet    = "summary"
	maxSheetName    = 31
	dayColumnWidth  = 12
	termColumnWidth = 10
)

// Sheet is one category's daily table in a workbook.
type Sheet struct {
	Name  string
	Table *DailyTable
}

// WriteWorkbook writes an xlsx workbook with a summary sheet followed by one
// sheet per category. Percentages are stored as numbers.
func WriteWorkbook(w io.Writer, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for i, header := range []string{"category", "days", "terms", "first_day", "last_day"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(summarySheet, cell, header); err != nil {
			return err
		}
	}

	used := map[string]bool{summarySheet: true}
	for i, s := range sheets {
		name := sheetName(s.Name, used)
		used[name] = true

		row := i + 2
		first, last := "", ""
		if n := len(s.Table.Rows); n > 0 {
			first, last = s.Table.Rows[0].Day.String(), s.Table.Rows[n-1].Day.String()
		}
		for col, v := range []any{s.Name, len(s.Table.Rows), len(s.Table.Terms), first, last} {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return err
			}
		}

		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, s.Table); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, name string, t *DailyTable) error {
	if err := f.SetCellValue(name, "A1", "day"); err != nil {
		return err
	}
	if err := f.SetColWidth(name, "A", "A", dayColumnWidth); err != nil {
		return err
	}
	for i, term := range t.Terms {
		cell, _ := excelize.CoordinatesToCellName(i+2, 1)
		if err := f.SetCellValue(name, cell, term); err != nil {
			return err
		}
	}
	if len(t.Terms) > 0 {
		last, _ := excelize.ColumnNumberToName(len(t.Terms) + 1)
		if err := f.SetColWidth(name, "B", last, termColumnWidth); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		if err := f.SetCellValue(name, fmt.Sprintf("A%d", r+2), row.Day.String()); err != nil {
			return err
		}
		for i, v := range row.Values {
			cell, _ := excelize.CoordinatesToCellName(i+2, r+2)
			if err := f.SetCellValue(name, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// sheetName makes a unique, valid sheet name from a category name.
func sheetName(category string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(category))
	if name == "" {
		name = "category"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	base := name
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	return name
}
