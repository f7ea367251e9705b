package chart

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/table"
)

const (
	// ShareThreshold is the fraction of the total below which a term is
	// folded into the "others" bucket.
	ShareThreshold = 0.03

	// OthersLabel names the bucket of small shares.
	OthersLabel = "others"

	// DefaultTopN is the number of terms in a correlation matrix.
	DefaultTopN = 10
)

// Point is one day's value of a series.
type Point struct {
	Day   market.Day
	Value float64
}

// Share is a term's summed percentage over a range.
type Share struct {
	Term    string  `json:"term"`
	Sum     float64 `json:"sum"`
	Percent float64 `json:"percent"`
}

// Pair is one day of a month with the values of two tables.
type Pair struct {
	Day int
	A   float64
	B   float64
}

func errNoData() error {
	return errors.NewNotFound("data for the selected period")
}

func column(t *table.DailyTable, term string) (int, error) {
	i := t.Column(term)
	if i < 0 {
		return -1, errors.NewInvalidRequest(fmt.Sprintf("unknown column %q", term))
	}
	return i, nil
}

// Series returns term's values for days in [from, to]. Zero bounds are open.
// An empty result is not an error.
func Series(t *table.DailyTable, term string, from, to market.Day) ([]Point, error) {
	i, err := column(t, term)
	if err != nil {
		return nil, err
	}
	var out []Point
	for _, r := range t.Between(from, to) {
		out = append(out, Point{Day: r.Day, Value: r.Values[i]})
	}
	return out, nil
}

// Difference returns a minus b for term on the days present in both tables.
func Difference(a, b *table.DailyTable, term string, from, to market.Day) ([]Point, error) {
	sa, err := Series(a, term, from, to)
	if err != nil {
		return nil, err
	}
	sb, err := Series(b, term, from, to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[market.Day]float64, len(sb))
	for _, p := range sb {
		byDay[p.Day] = p.Value
	}
	var out []Point
	for _, p := range sa {
		if v, ok := byDay[p.Day]; ok {
			out = append(out, Point{Day: p.Day, Value: p.Value - v})
		}
	}
	if len(out) == 0 {
		return nil, errNoData()
	}
	return out, nil
}

// Shares sums each term over [from, to] and returns the terms holding at
// least ShareThreshold of the total, largest first, followed by an
// OthersLabel bucket when anything was folded.
func Shares(t *table.DailyTable, from, to market.Day) ([]Share, error) {
	rows := t.Between(from, to)
	if len(rows) == 0 {
		return nil, errNoData()
	}
	sums := make([]Share, len(t.Terms))
	var total float64
	for i, term := range t.Terms {
		sums[i].Term = term
		for _, r := range rows {
			sums[i].Sum += r.Values[i]
		}
		total += sums[i].Sum
	}
	if total == 0 {
		return nil, errNoData()
	}
	sort.SliceStable(sums, func(i, j int) bool { return sums[i].Sum > sums[j].Sum })

	var out []Share
	var others float64
	for _, s := range sums {
		if s.Sum <= 0 {
			continue
		}
		if s.Sum/total >= ShareThreshold {
			s.Percent = 100 * s.Sum / total
			out = append(out, s)
		} else {
			others += s.Sum
		}
	}
	if others > 0 {
		out = append(out, Share{Term: OthersLabel, Sum: others, Percent: 100 * others / total})
	}
	return out, nil
}

// TopTerms returns up to n terms with the largest column sums.
func TopTerms(t *table.DailyTable, n int) []string {
	type col struct {
		term string
		sum  float64
	}
	cols := make([]col, len(t.Terms))
	for i, term := range t.Terms {
		cols[i].term = term
		for _, r := range t.Rows {
			cols[i].sum += r.Values[i]
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].sum > cols[j].sum })
	if n > len(cols) {
		n = len(cols)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = cols[i].term
	}
	return out
}

// Correlation returns the Pearson correlation matrix of the top n terms.
// Pairs involving a constant column are undefined and reported as 0.
func Correlation(t *table.DailyTable, n int) ([]string, [][]float64, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	if len(t.Rows) < 2 {
		return nil, nil, errNoData()
	}
	terms := TopTerms(t, n)
	cols := make([][]float64, len(terms))
	for i, term := range terms {
		idx := t.Column(term)
		cols[i] = make([]float64, len(t.Rows))
		for j, r := range t.Rows {
			cols[i][j] = r.Values[idx]
		}
	}

	m := make([][]float64, len(terms))
	for i := range m {
		m[i] = make([]float64, len(terms))
		for j := range m[i] {
			c := stat.Correlation(cols[i], cols[j], nil)
			if math.IsNaN(c) {
				c = 0
			}
			m[i][j] = c
		}
	}
	return terms, m, nil
}

// Monthly returns term's values in both tables for each day of the month
// present in either. A day missing from one table counts as 0. Both tables
// must have data in the month.
func Monthly(a, b *table.DailyTable, term string, year int, month time.Month) ([]Pair, error) {
	ia, err := column(a, term)
	if err != nil {
		return nil, err
	}
	ib, err := column(b, term)
	if err != nil {
		return nil, err
	}
	first := market.Day{Year: year, Month: month, Day: 1}
	last := market.DayOf(first.Time().AddDate(0, 1, -1))

	byDay := make(map[int]*Pair)
	rowsA, rowsB := a.Between(first, last), b.Between(first, last)
	if len(rowsA) == 0 || len(rowsB) == 0 {
		return nil, errNoData()
	}
	for _, r := range rowsA {
		p := pairFor(byDay, r.Day.Day)
		p.A += r.Values[ia]
	}
	for _, r := range rowsB {
		p := pairFor(byDay, r.Day.Day)
		p.B += r.Values[ib]
	}

	out := make([]Pair, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func pairFor(m map[int]*Pair, day int) *Pair {
	p, ok := m[day]
	if !ok {
		p = &Pair{Day: day}
		m[day] = p
	}
	return p
}
