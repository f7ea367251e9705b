package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/table"
)

// ClassifyInput contains parameters for the Classify operation.
type ClassifyInput struct {
	Source   string   // required: raw table with "date" and "text" columns
	Category string   // configured category name, or the name for Patterns
	Patterns []string // optional ad-hoc rule; overrides the configured one
	Output   string   // optional, default: <output_dir>/<category>_posts.csv
}

// ClassifyOutput contains the result of the Classify operation.
type ClassifyOutput struct {
	Category string `json:"category"`
	Rule     string `json:"rule"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
	Matched  int    `json:"matched"`
	Output   string `json:"output"`
}

// Classify runs the classifier stage alone and writes the filtered table.
func Classify(ctx context.Context, cfg *config.Config, input ClassifyInput) (*ClassifyOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cat, err := resolveCategory(cfg, input.Category, input.Patterns)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	f, err := openSource(input.Source)
	if err != nil {
		return nil, err
	}
	loaded, err := table.LoadRecords(f, input.Source, loc)
	f.Close()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, errors.NewCancelled("classify")
	default:
	}

	filtered, err := market.Classify(loaded.Records, cat)
	if err != nil {
		return nil, err
	}

	output := input.Output
	if output == "" {
		dir, err := resolveDir("", cfg.ResolveOutputDir)
		if err != nil {
			return nil, err
		}
		output = filepath.Join(dir, table.SanitizeForFilename(cat.Name)+"_posts.csv")
	}
	if err := table.WriteFileAtomic(output, func(w io.Writer) error {
		return table.WriteFiltered(w, filtered)
	}); err != nil {
		return nil, err
	}

	return &ClassifyOutput{
		Category: cat.Name,
		Rule:     cat.Rule.String(),
		Records:  len(loaded.Records),
		Skipped:  loaded.Skipped,
		Matched:  len(filtered),
		Output:   output,
	}, nil
}

// resolveCategory returns an ad-hoc category when patterns are given, else
// the configured category with the given name.
func resolveCategory(cfg *config.Config, name string, patterns []string) (market.Category, error) {
	name = strings.TrimSpace(name)
	if len(patterns) > 0 {
		if name == "" {
			name = "custom"
		}
		cat, err := market.NewCategory(name, patterns...)
		if err != nil {
			return market.Category{}, errors.NewInvalidRequest(err.Error())
		}
		return cat, nil
	}
	if name == "" {
		return market.Category{}, errors.NewInvalidRequest("category or patterns is required")
	}
	for _, cc := range cfg.Categories {
		if strings.TrimSpace(cc.Name) == name {
			cat, err := market.NewCategory(cc.Name, cc.Patterns...)
			if err != nil {
				return market.Category{}, errors.NewInvalidRequest(err.Error())
			}
			return cat, nil
		}
	}
	return market.Category{}, errors.NewInvalidRequest(fmt.Sprintf("unknown category %q", name))
}
