package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
)

// DailyTable is a day-by-term percentage table as persisted on disk.
type DailyTable struct {
	Terms []string
	Rows  []DailyTableRow
}

// DailyTableRow is one persisted day. Values are indexed like Terms.
type DailyTableRow struct {
	Day    market.Day
	Values []float64
}

// NewDailyTable builds a table from aggregated rows.
func NewDailyTable(vocab *market.Vocabulary, rows []market.DailyRow) *DailyTable {
	t := &DailyTable{Terms: vocab.Terms(), Rows: make([]DailyTableRow, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, DailyTableRow{Day: r.Day, Values: append([]float64(nil), r.Percentages...)})
	}
	return t
}

// Column returns the index of term, or -1.
func (t *DailyTable) Column(term string) int {
	for i, name := range t.Terms {
		if name == term {
			return i
		}
	}
	return -1
}

// Sort orders rows by day.
func (t *DailyTable) Sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].Day.Before(t.Rows[j].Day) })
}

// Between returns the rows whose day lies in [from, to]. Zero bounds are open.
func (t *DailyTable) Between(from, to market.Day) []DailyTableRow {
	var out []DailyTableRow
	for _, r := range t.Rows {
		if !from.IsZero() && r.Day.Before(from) {
			continue
		}
		if !to.IsZero() && to.Before(r.Day) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FormatPercent prints a percentage with at least one decimal: 50 -> "50.0".
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteDaily writes a UTF-8 (with BOM) day,<term...> table.
func WriteDaily(w io.Writer, t *DailyTable) error {
	return writeBOM(w, func(cw *csv.Writer) error {
		header := append([]string{"day"}, t.Terms...)
		if err := cw.Write(header); err != nil {
			return err
		}
		record := make([]string, len(header))
		for _, r := range t.Rows {
			if len(r.Values) != len(t.Terms) {
				return fmt.Errorf("row %s has %d values, want %d", r.Day, len(r.Values), len(t.Terms))
			}
			record[0] = r.Day.String()
			for i, v := range r.Values {
				record[i+1] = FormatPercent(v)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadDaily reads a table written by WriteDaily. A header-only table is valid
// and yields no rows.
func ReadDaily(r io.Reader, source string) (*DailyTable, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewEmptyInput(source)
	}
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read header: %v", err))
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != "day" {
		return nil, errors.NewInvalidRequest(`daily table must start with a "day" column`)
	}

	t := &DailyTable{Terms: append([]string(nil), header[1:]...)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		line, _ := cr.FieldPos(0)
		d, err := market.ParseDay(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: %v", line, err))
		}
		values := make([]float64, len(t.Terms))
		for i := range t.Terms {
			if i+1 >= len(row) || strings.TrimSpace(row[i+1]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d column %q: not numeric", line, t.Terms[i]))
			}
			values[i] = v
		}
		t.Rows = append(t.Rows, DailyTableRow{Day: d, Values: values})
	}
	return t, nil
}
