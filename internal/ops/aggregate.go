package ops

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/table"
)

// AggregateInput contains parameters for the Aggregate operation.
type AggregateInput struct {
	Source string // required: filtered table with "day" and "text" columns
	Output string // optional, default: <source without _posts>_daily.csv next to source
}

// AggregateOutput contains the result of the Aggregate operation.
type AggregateOutput struct {
	Records int    `json:"records"`
	Days    int    `json:"days"`
	Terms   int    `json:"terms"`
	Output  string `json:"output"`
}

// Aggregate runs the daily aggregator stage alone over a filtered table.
// When no day has a vocabulary term a header-only table is still written
// and NO_VOCABULARY_OVERLAP is returned.
func Aggregate(ctx context.Context, cfg *config.Config, input AggregateInput) (*AggregateOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rounding, err := cfg.MarketRounding()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	vocab := cfg.MarketVocabulary()

	f, err := openSource(input.Source)
	if err != nil {
		return nil, err
	}
	records, err := table.LoadFiltered(f, input.Source)
	f.Close()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, errors.NewCancelled("aggregate")
	default:
	}

	rows, aggErr := market.Aggregate(records, vocab, rounding)
	if aggErr != nil && !errors.Is(aggErr, errors.ErrNoVocabularyOverlap) {
		return nil, aggErr
	}

	output := input.Output
	if output == "" {
		output = defaultDailyPath(input.Source)
	}
	t := table.NewDailyTable(vocab, rows)
	if err := table.WriteFileAtomic(output, func(w io.Writer) error {
		return table.WriteDaily(w, t)
	}); err != nil {
		return nil, err
	}
	if aggErr != nil {
		return nil, aggErr
	}

	return &AggregateOutput{
		Records: len(records),
		Days:    len(rows),
		Terms:   vocab.Len(),
		Output:  output,
	}, nil
}

// defaultDailyPath maps ".../demand_posts.csv" to ".../demand_daily.csv".
func defaultDailyPath(source string) string {
	dir, file := filepath.Split(source)
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	stem = strings.TrimSuffix(stem, "_posts")
	return filepath.Join(dir, stem+"_daily.csv")
}
