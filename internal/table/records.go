package table

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	textunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
)

// MaxReportedSkips caps the number of skipped line numbers kept in a LoadResult.
const MaxReportedSkips = 50

// timestampLayouts are tried in order when parsing the date column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadResult holds the parsed records of a raw table.
type LoadResult struct {
	Records      []market.Record
	Skipped      int   // rows with an unparseable timestamp
	SkippedLines []int // 1-based line numbers, capped at MaxReportedSkips

	// Malformed describes the reported skips, one per SkippedLines entry.
	Malformed []*errors.SouqError
}

// newReader strips a leading UTF-8 BOM if present.
func newReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, textunicode.BOMOverride(textunicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// readHeader reads the header row and returns column positions by name.
func readHeader(cr *csv.Reader, source string) (map[string]int, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewEmptyInput(source)
	}
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read header: %v", err))
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := cols[name]; !ok {
			cols[name] = i
		}
	}
	return cols, nil
}

// ParseTimestamp parses the timestamp layouts found in raw exports.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LoadRecords reads a raw table with at least "date" and "text" columns.
// Rows with an unparseable date are skipped and counted. When loc is
// non-nil, timestamps are converted into loc before use.
//
// A table with no data rows, or whose rows were all skipped, is EMPTY_INPUT.
func LoadRecords(r io.Reader, source string, loc *time.Location) (*LoadResult, error) {
	cr := newReader(r)
	cols, err := readHeader(cr, source)
	if err != nil {
		return nil, err
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, errors.NewInvalidRequest(`input table has no "date" column`)
	}
	textCol, hasText := cols["text"]
	if !hasText {
		return nil, errors.NewInvalidRequest(`input table has no "text" column`)
	}

	res := &LoadResult{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !stderrors.As(err, &perr) {
				return nil, errors.NewInternal(err)
			}
			res.skip(perr.StartLine, "")
			continue
		}
		line, _ := cr.FieldPos(0)
		if dateCol >= len(row) {
			res.skip(line, "")
			continue
		}
		ts, err := ParseTimestamp(row[dateCol])
		if err != nil {
			res.skip(line, row[dateCol])
			continue
		}
		if loc != nil {
			ts = ts.In(loc)
		}
		var text string
		if textCol < len(row) {
			text = row[textCol]
		}
		res.Records = append(res.Records, market.Record{Timestamp: ts, Text: text})
	}

	if len(res.Records) == 0 {
		e := errors.NewEmptyInput(source)
		if res.Skipped > 0 {
			if e.Details == nil {
				e.Details = map[string]any{}
			}
			e.Details["skipped"] = res.Skipped
		}
		return res, e
	}
	return res, nil
}

func (r *LoadResult) skip(line int, value string) {
	r.Skipped++
	if len(r.SkippedLines) < MaxReportedSkips {
		r.SkippedLines = append(r.SkippedLines, line)
		r.Malformed = append(r.Malformed, errors.NewMalformedRecord(line, value))
	}
}

// LoadFiltered reads a day,text table written by WriteFiltered.
func LoadFiltered(r io.Reader, source string) ([]market.FilteredRecord, error) {
	cr := newReader(r)
	cols, err := readHeader(cr, source)
	if err != nil {
		return nil, err
	}
	dayCol, ok := cols["day"]
	if !ok {
		return nil, errors.NewInvalidRequest(`filtered table has no "day" column`)
	}
	textCol, ok := cols["text"]
	if !ok {
		return nil, errors.NewInvalidRequest(`filtered table has no "text" column`)
	}

	var out []market.FilteredRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		line, _ := cr.FieldPos(0)
		if dayCol >= len(row) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: missing day", line))
		}
		d, err := market.ParseDay(strings.TrimSpace(row[dayCol]))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: %v", line, err))
		}
		var text string
		if textCol < len(row) {
			text = row[textCol]
		}
		out = append(out, market.FilteredRecord{Day: d, Text: text})
	}
	if len(out) == 0 {
		return nil, errors.NewEmptyInput(source)
	}
	return out, nil
}

// WriteFiltered writes a UTF-8 (with BOM) day,text table.
func WriteFiltered(w io.Writer, records []market.FilteredRecord) error {
	return writeBOM(w, func(cw *csv.Writer) error {
		if err := cw.Write([]string{"day", "text"}); err != nil {
			return err
		}
		for _, rec := range records {
			if err := cw.Write([]string{rec.Day.String(), rec.Text}); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeBOM runs fn against a CSV writer whose output is prefixed with a UTF-8 BOM.
func writeBOM(w io.Writer, fn func(cw *csv.Writer) error) error {
	tw := transform.NewWriter(w, textunicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)
	if err := fn(cw); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return tw.Close()
}
