package market

import (
	"fmt"
	"time"
)

// Record is one timestamped post as produced by ingestion.
type Record struct {
	Timestamp time.Time
	Text      string // empty when the post had no text
}

// Day is a calendar date with no time or location.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayLayout is the textual form of a Day in tables.
const DayLayout = "2006-01-02"

// DayOf truncates t to its date in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses a "2006-01-02" date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// String formats the day as "2006-01-02".
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is earlier than other.
func (d Day) Before(other Day) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// FilteredRecord is a matched record reduced to its day.
type FilteredRecord struct {
	Day  Day
	Text string
}
