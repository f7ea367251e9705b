package market

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Rule matches text case-insensitively against a list of alternatives.
// A match succeeds if any alternative is a substring of the text.
type Rule struct {
	alternatives []string // as configured
	folded       []string // case-folded, same order
}

// NewRule builds a Rule from patterns. Each pattern may itself be an
// alternation written as "a|b|c". Empty alternatives are dropped.
func NewRule(patterns ...string) (Rule, error) {
	var r Rule
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, alt := range strings.Split(p, "|") {
			alt = strings.TrimSpace(alt)
			if alt == "" {
				continue
			}
			f := fold(alt)
			if seen[f] {
				continue
			}
			seen[f] = true
			r.alternatives = append(r.alternatives, alt)
			r.folded = append(r.folded, f)
		}
	}
	if len(r.alternatives) == 0 {
		return Rule{}, fmt.Errorf("rule has no non-empty patterns")
	}
	return r, nil
}

// Alternatives returns the configured alternatives in order.
func (r Rule) Alternatives() []string {
	out := make([]string, len(r.alternatives))
	copy(out, r.alternatives)
	return out
}

// String renders the rule in alternation form.
func (r Rule) String() string {
	return strings.Join(r.alternatives, "|")
}

// Matches reports whether text contains any alternative. Empty text never matches.
func (r Rule) Matches(text string) bool {
	if text == "" || len(r.folded) == 0 {
		return false
	}
	return r.matchesFolded(fold(text))
}

func (r Rule) matchesFolded(folded string) bool {
	for _, alt := range r.folded {
		if strings.Contains(folded, alt) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding. A Caser is stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Category is a named partition of records defined by a Rule.
type Category struct {
	Name string
	Rule Rule
}

// NewCategory validates the name and builds the rule.
func NewCategory(name string, patterns ...string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("category name is required")
	}
	rule, err := NewRule(patterns...)
	if err != nil {
		return Category{}, fmt.Errorf("category %q: %w", name, err)
	}
	return Category{Name: name, Rule: rule}, nil
}
