package market

import (
	"sort"
	"strings"

	"github.com/hpungsan/souq/internal/errors"
)

// DailyRow is one day's distribution over the vocabulary.
// Counts and Percentages are indexed in vocabulary order.
type DailyRow struct {
	Day         Day
	Total       int // vocabulary tokens seen that day
	Counts      []int
	Percentages []float64
}

// Sum returns the sum of the row's percentages.
func (r DailyRow) Sum() float64 {
	var s float64
	for _, p := range r.Percentages {
		s += p
	}
	return s
}

// Aggregate turns filtered records into one DailyRow per day that has at
// least one vocabulary token. Rows are sorted by day.
//
// An empty input is EMPTY_INPUT. Input with no vocabulary token on any day
// returns an empty slice and NO_VOCABULARY_OVERLAP.
func Aggregate(records []FilteredRecord, vocab *Vocabulary, rounding Rounding) ([]DailyRow, error) {
	if len(records) == 0 {
		return nil, errors.NewEmptyInput("")
	}
	if vocab == nil || vocab.Len() == 0 {
		return nil, errors.NewInvalidRequest("vocabulary is empty")
	}

	counts := make(map[Day][]int)
	totals := make(map[Day]int)
	for _, rec := range records {
		for _, tok := range strings.Fields(rec.Text) {
			i := vocab.Index(tok)
			if i < 0 {
				continue
			}
			c, ok := counts[rec.Day]
			if !ok {
				c = make([]int, vocab.Len())
				counts[rec.Day] = c
			}
			c[i]++
			totals[rec.Day]++
		}
	}

	days := make([]Day, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	rows := make([]DailyRow, 0, len(days))
	for _, d := range days {
		total := totals[d]
		row := DailyRow{
			Day:         d,
			Total:       total,
			Counts:      counts[d],
			Percentages: make([]float64, vocab.Len()),
		}
		for i, n := range row.Counts {
			if n > 0 {
				row.Percentages[i] = rounding.Percent(n, total)
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return rows, errors.NewNoVocabularyOverlap(len(records))
	}
	return rows, nil
}
