package ops

import (
	"github.com/hpungsan/souq/internal/config"
)

// VocabularyTerm is one tracked term and its column position.
type VocabularyTerm struct {
	Index int    `json:"index"`
	Term  string `json:"term"`
	// Reachable is false for terms containing whitespace, which can never
	// equal a whitespace-separated token.
	Reachable bool `json:"reachable"`
}

// CategoryInfo describes a configured category.
type CategoryInfo struct {
	Name         string   `json:"name"`
	Alternatives []string `json:"alternatives"`
}

// VocabularyOutput contains the result of the Vocabulary operation.
type VocabularyOutput struct {
	Terms      []VocabularyTerm `json:"terms"`
	Categories []CategoryInfo   `json:"categories"`
	Rounding   string           `json:"rounding"`
}

// Vocabulary describes the configured vocabulary and categories.
func Vocabulary(cfg *config.Config) (*VocabularyOutput, error) {
	p, err := newPipeline(cfg, nil)
	if err != nil {
		return nil, err
	}
	unreachable := make(map[string]bool)
	for _, term := range p.vocab.Unreachable() {
		unreachable[term] = true
	}
	out := &VocabularyOutput{Rounding: string(p.rounding)}
	for i, term := range p.vocab.Terms() {
		out.Terms = append(out.Terms, VocabularyTerm{Index: i, Term: term, Reachable: !unreachable[term]})
	}
	for _, c := range p.categories {
		out.Categories = append(out.Categories, CategoryInfo{Name: c.Name, Alternatives: c.Rule.Alternatives()})
	}
	return out, nil
}
