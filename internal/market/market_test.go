package market

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/souq/internal/errors"
)

func day(t *testing.T, s string) Day {
	t.Helper()
	d, err := ParseDay(s)
	require.NoError(t, err)
	return d
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestDay(t *testing.T) {
	d := DayOf(time.Date(2025, 6, 1, 23, 59, 0, 0, time.FixedZone("AST", 3*3600)))
	require.Equal(t, "2025-06-01", d.String())
	require.Equal(t, d, day(t, "2025-06-01"))
	require.True(t, day(t, "2025-05-31").Before(d))
	require.False(t, d.Before(d))
	require.True(t, Day{}.IsZero())
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), d.Time())

	_, err := ParseDay("June 1")
	require.Error(t, err)
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary([]string{"سكر", "طحين", "", "سكر", "رز", "ورق عنب", "  "})

	require.Equal(t, []string{"سكر", "طحين", "رز", "ورق عنب"}, v.Terms())
	require.Equal(t, 4, v.Len())
	require.Equal(t, 1, v.Index("طحين"))
	require.Equal(t, -1, v.Index("قلم"))
	require.True(t, v.Contains("رز"))
	require.False(t, v.Contains("الرز"))
	require.Equal(t, []string{"ورق عنب"}, v.Unreachable())

	// Terms returns a copy
	terms := v.Terms()
	terms[0] = "x"
	require.Equal(t, "سكر", v.Terms()[0])
}

func TestRule(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		text     string
		want     bool
	}{
		{name: "single keyword", patterns: []string{"مطلوب"}, text: "...مطلوب...", want: true},
		{name: "substring not word boundary", patterns: []string{"مطلوب"}, text: "المطلوب سكر", want: true},
		{name: "no match", patterns: []string{"مطلوب"}, text: "غير ذلك", want: false},
		{name: "empty text", patterns: []string{"مطلوب"}, text: "", want: false},
		{name: "alternation string", patterns: []string{"متوفر|للبيع|موجود|المعنيس"}, text: "رز للبيع", want: true},
		{name: "alternation list", patterns: []string{"متوفر", "موجود"}, text: "سكر موجود", want: true},
		{name: "alternation miss", patterns: []string{"متوفر|للبيع"}, text: "مطلوب رز", want: false},
		{name: "latin mixed case", patterns: []string{"Wanted"}, text: "sugar WANTED today", want: true},
		{name: "latin folded pattern", patterns: []string{"FOR SALE"}, text: "Flour for sale", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRule(tt.patterns...)
			require.NoError(t, err)
			require.Equal(t, tt.want, r.Matches(tt.text))
		})
	}
}

func TestNewRule_Errors(t *testing.T) {
	_, err := NewRule()
	require.Error(t, err)

	_, err = NewRule("", " | |")
	require.Error(t, err)

	r, err := NewRule("a|b", "B", "c")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, r.Alternatives())
	require.Equal(t, "a|b|c", r.String())
}

func TestNewCategory(t *testing.T) {
	c, err := NewCategory(" demand ", "مطلوب")
	require.NoError(t, err)
	require.Equal(t, "demand", c.Name)

	_, err = NewCategory("", "مطلوب")
	require.Error(t, err)

	_, err = NewCategory("supply")
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	cat, err := NewCategory("demand", "مطلوب")
	require.NoError(t, err)

	records := []Record{
		{Timestamp: at(t, "2025-06-01T10:00:00Z"), Text: "...مطلوب..."},
		{Timestamp: at(t, "2025-06-01T11:00:00Z"), Text: "غير ذلك"},
		{Timestamp: at(t, "2025-06-02T09:00:00Z"), Text: ""},
	}

	got, err := Classify(records, cat)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, day(t, "2025-06-01"), got[0].Day)
	require.Equal(t, "...مطلوب...", got[0].Text)
}

func TestClassify_PreservesOrder(t *testing.T) {
	cat, err := NewCategory("supply", "متوفر|للبيع")
	require.NoError(t, err)

	records := []Record{
		{Timestamp: at(t, "2025-06-03T10:00:00Z"), Text: "زيت متوفر"},
		{Timestamp: at(t, "2025-06-01T10:00:00Z"), Text: "لا شيء"},
		{Timestamp: at(t, "2025-06-02T10:00:00Z"), Text: "رز للبيع"},
	}

	got, err := Classify(records, cat)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "زيت متوفر", got[0].Text)
	require.Equal(t, "رز للبيع", got[1].Text)
}

func TestClassify_NoMatches(t *testing.T) {
	cat, err := NewCategory("demand", "مطلوب")
	require.NoError(t, err)

	got, err := Classify([]Record{{Timestamp: at(t, "2025-06-01T10:00:00Z"), Text: "قلم"}}, cat)
	require.Nil(t, got)
	require.True(t, errors.Is(err, errors.ErrNoMatches))

	_, err = Classify(nil, cat)
	require.True(t, errors.Is(err, errors.ErrNoMatches))
}

func TestAggregate_Scenario(t *testing.T) {
	vocab := NewVocabulary([]string{"سكر", "طحين", "رز"})
	d := day(t, "2025-06-01")
	records := []FilteredRecord{
		{Day: d, Text: "سكر سكر طحين"},
		{Day: d, Text: "رز"},
	}

	rows, err := Aggregate(records, vocab, RoundHalfEven)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, d, rows[0].Day)
	require.Equal(t, 4, rows[0].Total)
	require.Equal(t, []int{2, 1, 1}, rows[0].Counts)
	require.Equal(t, []float64{50.0, 25.0, 25.0}, rows[0].Percentages)
}

func TestAggregate_NoVocabularyTerms(t *testing.T) {
	vocab := NewVocabulary([]string{"سكر", "طحين", "رز"})
	records := []FilteredRecord{{Day: day(t, "2025-06-01"), Text: "قلم كتاب"}}

	rows, err := Aggregate(records, vocab, RoundHalfEven)
	require.Empty(t, rows)
	require.True(t, errors.Is(err, errors.ErrNoVocabularyOverlap))
}

func TestAggregate_EmptyInput(t *testing.T) {
	vocab := NewVocabulary([]string{"سكر"})
	_, err := Aggregate(nil, vocab, RoundHalfEven)
	require.True(t, errors.Is(err, errors.ErrEmptyInput))
}

func TestAggregate_EmptyVocabulary(t *testing.T) {
	_, err := Aggregate([]FilteredRecord{{Day: day(t, "2025-06-01"), Text: "سكر"}}, NewVocabulary(nil), RoundHalfEven)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestAggregate_SkipsDaysWithoutTerms(t *testing.T) {
	vocab := NewVocabulary([]string{"سكر", "رز"})
	records := []FilteredRecord{
		{Day: day(t, "2025-06-02"), Text: "رز"},
		{Day: day(t, "2025-06-01"), Text: "قلم"},
		{Day: day(t, "2025-06-03"), Text: "سكر رز"},
	}

	rows, err := Aggregate(records, vocab, RoundHalfEven)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2025-06-02", rows[0].Day.String())
	require.Equal(t, "2025-06-03", rows[1].Day.String())
	require.Equal(t, []float64{0, 100}, rows[0].Percentages)
	require.Equal(t, []float64{50, 50}, rows[1].Percentages)
}

func TestAggregate_ExactTokensOnly(t *testing.T) {
	// prefixed forms are distinct terms, punctuation is not stripped
	vocab := NewVocabulary([]string{"سكر", "السكر"})
	records := []FilteredRecord{{Day: day(t, "2025-06-01"), Text: "السكر سكر، سكر\tسكر\nالسكر"}}

	rows, err := Aggregate(records, vocab, RoundHalfEven)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []int{2, 2}, rows[0].Counts)
}

func TestAggregate_RowSums(t *testing.T) {
	vocab := NewVocabulary([]string{"a", "b", "c", "d", "e", "f", "g"})
	rng := rand.New(rand.NewSource(42))
	terms := vocab.Terms()

	var records []FilteredRecord
	for i := 0; i < 300; i++ {
		d := Day{Year: 2025, Month: time.June, Day: 1 + rng.Intn(28)}
		text := terms[rng.Intn(len(terms))] + " x " + terms[rng.Intn(len(terms))]
		records = append(records, FilteredRecord{Day: d, Text: text})
	}

	for _, mode := range []Rounding{RoundHalfEven, RoundHalfAwayFromZero} {
		rows, err := Aggregate(records, vocab, mode)
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		for _, r := range rows {
			require.InDelta(t, 100.0, r.Sum(), 0.005*float64(vocab.Len()), "day %s", r.Day)
		}
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	vocab := NewVocabulary([]string{"سكر", "طحين", "رز", "زيت"})
	d := day(t, "2025-06-01")
	records := []FilteredRecord{
		{Day: d, Text: "سكر طحين"},
		{Day: d, Text: "رز رز"},
		{Day: d, Text: "زيت"},
		{Day: day(t, "2025-06-02"), Text: "سكر"},
		{Day: d, Text: "سكر قلم"},
	}

	want, err := Aggregate(records, vocab, RoundHalfEven)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]FilteredRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := Aggregate(shuffled, vocab, RoundHalfEven)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRounding(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		total       int
		wantEven    float64
		wantAwayPct float64
	}{
		{name: "tie down to even", count: 1, total: 800, wantEven: 0.12, wantAwayPct: 0.13},
		{name: "tie at .625", count: 5, total: 800, wantEven: 0.62, wantAwayPct: 0.63},
		{name: "tie already odd", count: 3, total: 800, wantEven: 0.38, wantAwayPct: 0.38},
		// exact ties that float division of count/total then *100 would miss
		{name: "exact tie 23/160", count: 23, total: 160, wantEven: 14.38, wantAwayPct: 14.38},
		{name: "exact tie 49/160", count: 49, total: 160, wantEven: 30.62, wantAwayPct: 30.63},
		{name: "thirds", count: 1, total: 3, wantEven: 33.33, wantAwayPct: 33.33},
		{name: "two thirds", count: 2, total: 3, wantEven: 66.67, wantAwayPct: 66.67},
		{name: "whole", count: 4, total: 4, wantEven: 100, wantAwayPct: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantEven, RoundHalfEven.Percent(tt.count, tt.total))
			require.Equal(t, tt.wantAwayPct, RoundHalfAwayFromZero.Percent(tt.count, tt.total))
		})
	}
}

func TestParseRounding(t *testing.T) {
	r, err := ParseRounding("")
	require.NoError(t, err)
	require.Equal(t, RoundHalfEven, r)

	r, err = ParseRounding("half_away")
	require.NoError(t, err)
	require.Equal(t, RoundHalfAwayFromZero, r)

	_, err = ParseRounding("bankers")
	require.Error(t, err)
}
