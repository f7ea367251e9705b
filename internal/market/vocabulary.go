package market

import "strings"

// Vocabulary is the ordered set of tracked terms.
// Insertion order is column order in daily tables.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// NewVocabulary builds a Vocabulary from terms, dropping empty entries and
// later duplicates. Terms are kept verbatim: no trimming inside, no normalization.
func NewVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{
		terms: make([]string, 0, len(terms)),
		index: make(map[string]int, len(terms)),
	}
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if _, ok := v.index[t]; ok {
			continue
		}
		v.index[t] = len(v.terms)
		v.terms = append(v.terms, t)
	}
	return v
}

// Terms returns a copy of the terms in order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Index returns the column index of term, or -1.
func (v *Vocabulary) Index(term string) int {
	if i, ok := v.index[term]; ok {
		return i
	}
	return -1
}

// Contains reports whether token is exactly a vocabulary term.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.index[token]
	return ok
}

// Unreachable returns terms containing whitespace. Tokens never contain
// whitespace, so these columns are always zero.
func (v *Vocabulary) Unreachable() []string {
	var out []string
	for _, t := range v.terms {
		if len(strings.Fields(t)) != 1 || strings.TrimSpace(t) != t {
			out = append(out, t)
		}
	}
	return out
}
