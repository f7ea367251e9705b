package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/market"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// baseDir returns the souq home directory.
func baseDir() (string, error) {
	dir, err := config.BaseDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to resolve base directory: %w", err))
	}
	return dir, nil
}

// resolveDir returns explicit when set, otherwise resolve(baseDir).
func resolveDir(explicit string, resolve func(string) string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	base, err := baseDir()
	if err != nil {
		return "", err
	}
	return resolve(base), nil
}

// DefaultExportsDir returns the default exports directory (~/.souq/exports).
func DefaultExportsDir() (string, error) {
	base, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "exports"), nil
}

// exportDirs returns the directories exports may be written to.
func exportDirs(cfg *config.Config) ([]string, error) {
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(exportsDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	dirs := []string{abs}
	if cfg != nil {
		dirs = append(dirs, cfg.AllowedPaths...)
	}
	return dirs, nil
}

// pipeline holds the parsed configuration a run needs.
type pipeline struct {
	vocab      *market.Vocabulary
	categories []market.Category
	rounding   market.Rounding
	cfg        *config.Config
}

// newPipeline builds the pipeline from cfg. When only is non-empty the
// categories are restricted to those names, in configured order.
func newPipeline(cfg *config.Config, only []string) (*pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid configuration: %v", err))
	}
	cats, err := cfg.MarketCategories()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	rounding, err := cfg.MarketRounding()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	if len(only) > 0 {
		wanted := make(map[string]bool, len(only))
		for _, name := range only {
			wanted[strings.TrimSpace(name)] = true
		}
		var selected []market.Category
		for _, c := range cats {
			if wanted[c.Name] {
				selected = append(selected, c)
				delete(wanted, c.Name)
			}
		}
		for name := range wanted {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown category %q", name))
		}
		cats = selected
	}

	return &pipeline{
		vocab:      cfg.MarketVocabulary(),
		categories: cats,
		rounding:   rounding,
		cfg:        cfg,
	}, nil
}

// openSource opens an input table, mapping a missing file to FILE_NOT_FOUND.
func openSource(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInvalidRequest("source is required")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// statusMessage is the user-facing message reported for a category outcome.
func statusMessage(err error) string {
	if err == nil {
		return "completed"
	}
	code := errors.CodeOf(err)
	if code != errors.ErrInternal {
		if msg := errors.UserMessage(code); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// parseDayArg parses an optional YYYY-MM-DD argument.
func parseDayArg(name, value string) (market.Day, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return market.Day{}, nil
	}
	d, err := market.ParseDay(value)
	if err != nil {
		return market.Day{}, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", name, err))
	}
	return d, nil
}

// parseRange parses optional from/to bounds and rejects an inverted range.
func parseRange(from, to string) (market.Day, market.Day, error) {
	f, err := parseDayArg("from", from)
	if err != nil {
		return market.Day{}, market.Day{}, err
	}
	t, err := parseDayArg("to", to)
	if err != nil {
		return market.Day{}, market.Day{}, err
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return market.Day{}, market.Day{}, errors.NewInvalidRequest("from must not be after to")
	}
	return f, t, nil
}
