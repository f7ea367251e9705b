package market

import "github.com/hpungsan/souq/internal/errors"

// Classify returns, in input order, the records whose text matches the
// category rule, each reduced to its day. Zero matches is reported as a
// NO_MATCHES error so callers skip aggregation.
func Classify(records []Record, category Category) ([]FilteredRecord, error) {
	var out []FilteredRecord
	for _, rec := range records {
		if !category.Rule.Matches(rec.Text) {
			continue
		}
		out = append(out, FilteredRecord{
			Day:  DayOf(rec.Timestamp),
			Text: rec.Text,
		})
	}
	if len(out) == 0 {
		return nil, errors.NewNoMatches(category.Name)
	}
	return out, nil
}
