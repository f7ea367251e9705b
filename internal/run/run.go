package run

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/souq/internal/errors"
)

// Status is the outcome of one category's pipeline.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusEmptyInput          Status = "empty_input"
	StatusNoMatches           Status = "no_matches"
	StatusNoVocabularyOverlap Status = "no_vocabulary_overlap"
	StatusFailed              Status = "failed"
)

// StatusFor maps a pipeline error to a category status. nil is ok.
func StatusFor(err error) Status {
	if err == nil {
		return StatusOK
	}
	switch errors.CodeOf(err) {
	case errors.ErrEmptyInput:
		return StatusEmptyInput
	case errors.ErrNoMatches:
		return StatusNoMatches
	case errors.ErrNoVocabularyOverlap:
		return StatusNoVocabularyOverlap
	default:
		return StatusFailed
	}
}

// Run is one execution of the pipeline over a source table.
type Run struct {
	// ID is a ULID; lexical order is creation order.
	ID string `json:"id"`

	// Source is the input table path as given.
	Source string `json:"source"`

	// Records is the number of records loaded; Skipped counts rows with an
	// unparseable timestamp.
	Records int `json:"records"`
	Skipped int `json:"skipped"`

	// StartedAt and FinishedAt are Unix timestamps.
	StartedAt  int64 `json:"started_at"`
	FinishedAt int64 `json:"finished_at"`

	Categories []CategoryResult `json:"categories"`
}

// CategoryResult reports one category of a run.
type CategoryResult struct {
	Category string `json:"category"`
	Status   Status `json:"status"`
	Message  string `json:"message"`

	// Matched is the number of records the classifier kept.
	Matched int `json:"matched"`

	// Days is the number of daily rows produced.
	Days int `json:"days"`

	// Terms is the column order of the daily table.
	Terms []string `json:"-"`

	FilteredPath string `json:"filtered_path,omitempty"`
	DailyPath    string `json:"daily_path,omitempty"`
}

// OK reports whether every category finished with StatusOK.
func (r *Run) OK() bool {
	for _, c := range r.Categories {
		if c.Status != StatusOK {
			return false
		}
	}
	return true
}

// Category returns the named category result, or nil.
func (r *Run) Category(name string) *CategoryResult {
	for i := range r.Categories {
		if r.Categories[i].Category == name {
			return &r.Categories[i]
		}
	}
	return nil
}

// Summary is a run without its per-category details, for listings.
type Summary struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Records    int    `json:"records"`
	Skipped    int    `json:"skipped"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
	Categories int    `json:"categories"`
	Succeeded  int    `json:"succeeded"`
}

// NewID returns a new ULID string.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}
