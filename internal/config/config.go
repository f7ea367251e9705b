package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/souq/internal/market"
)

// CategoryConfig defines one category by name and match patterns.
// A pattern may be an alternation written as "a|b|c".
type CategoryConfig struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
}

// Config holds application configuration.
type Config struct {
	// Vocabulary is the ordered list of tracked terms. Order is column order.
	// A non-empty overlay list replaces the base list entirely.
	Vocabulary []string `json:"vocabulary,omitempty"`

	// Categories are processed in order by the pipeline.
	// A non-empty overlay list replaces the base list entirely.
	Categories []CategoryConfig `json:"categories,omitempty"`

	// Rounding is "half_even" (default) or "half_away".
	Rounding string `json:"rounding,omitempty"`

	// Timezone, when set, converts parsed timestamps into this IANA location
	// before days are derived. Empty keeps each timestamp's own offset.
	Timezone string `json:"timezone,omitempty"`

	// OutputDir receives the per-category CSV tables. Relative paths are
	// resolved against the working directory. Default: <base>/data.
	OutputDir string `json:"output_dir,omitempty"`

	// ChartDir receives rendered PNG charts. Default: <base>/charts.
	ChartDir string `json:"chart_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for workbook exports
	// outside <base>/exports. Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Vocabulary: append([]string(nil), DefaultVocabulary...),
		Categories: []CategoryConfig{
			{Name: "demand", Patterns: []string{"مطلوب"}},
			{Name: "supply", Patterns: []string{"متوفر|للبيع|موجود|المعنيس"}},
		},
		Rounding: string(market.RoundHalfEven),
		LogLevel: "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.souq.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.souq) and repo (.souq) directories.
// Repo config is found by walking upward from startDir to find the nearest .souq/config.json.
// Repo config takes precedence. Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .souq/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".souq", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Scalars: overlay wins if non-zero. Vocabulary and categories: overlay
// replaces base when non-empty (column order must stay deterministic).
// Other lists are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Vocabulary = base.Vocabulary
	if len(overlay.Vocabulary) > 0 {
		result.Vocabulary = overlay.Vocabulary
	}
	result.Vocabulary = append([]string(nil), result.Vocabulary...)

	result.Categories = base.Categories
	if len(overlay.Categories) > 0 {
		result.Categories = overlay.Categories
	}
	result.Categories = append([]CategoryConfig(nil), result.Categories...)

	result.Rounding = firstNonEmpty(overlay.Rounding, base.Rounding)
	result.Timezone = firstNonEmpty(overlay.Timezone, base.Timezone)
	result.OutputDir = firstNonEmpty(overlay.OutputDir, base.OutputDir)
	result.ChartDir = firstNonEmpty(overlay.ChartDir, base.ChartDir)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// Validate checks the config and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Vocabulary) == 0 {
		return fmt.Errorf("vocabulary is empty")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("no categories configured")
	}
	seen := make(map[string]bool)
	for _, cc := range c.Categories {
		if _, err := market.NewCategory(cc.Name, cc.Patterns...); err != nil {
			return err
		}
		name := strings.TrimSpace(cc.Name)
		if seen[name] {
			return fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true
	}
	if _, err := market.ParseRounding(c.Rounding); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// MarketVocabulary builds the ordered vocabulary.
func (c *Config) MarketVocabulary() *market.Vocabulary {
	return market.NewVocabulary(c.Vocabulary)
}

// MarketCategories builds the configured categories in order.
func (c *Config) MarketCategories() ([]market.Category, error) {
	out := make([]market.Category, 0, len(c.Categories))
	for _, cc := range c.Categories {
		cat, err := market.NewCategory(cc.Name, cc.Patterns...)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

// MarketRounding returns the configured rounding mode.
func (c *Config) MarketRounding() (market.Rounding, error) {
	return market.ParseRounding(c.Rounding)
}

// Location returns the configured timezone, or nil to keep parsed offsets.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ResolveOutputDir returns OutputDir or baseDir/data.
func (c *Config) ResolveOutputDir(baseDir string) string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(baseDir, "data")
}

// ResolveChartDir returns ChartDir or baseDir/charts.
func (c *Config) ResolveChartDir(baseDir string) string {
	if c.ChartDir != "" {
		return c.ChartDir
	}
	return filepath.Join(baseDir, "charts")
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
