package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/souq/internal/db"
	"github.com/hpungsan/souq/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThan time.Duration // required, purge runs started more than this long ago
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes old runs and their stored daily rows. Table
// files on disk are left alone.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if input.OlderThan <= 0 {
		return nil, errors.NewInvalidRequest("older_than must be positive")
	}
	cutoff := time.Now().Add(-input.OlderThan).Unix()

	count, err := db.PurgeOlderThan(database, cutoff)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThan),
	}, nil
}

// ParseAge parses a duration that also accepts whole days ("7d").
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid age %q", s))
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid age %q", s))
	}
	return d, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, olderThan time.Duration) string {
	if count == 0 {
		return "No runs to purge"
	}

	runWord := "run"
	if count > 1 {
		runWord = "runs"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, runWord)
	if days := olderThan / (24 * time.Hour); days > 0 && olderThan%(24*time.Hour) == 0 {
		msg += fmt.Sprintf(" (started more than %d days ago)", days)
	} else {
		msg += fmt.Sprintf(" (started more than %s ago)", olderThan)
	}
	return msg
}
