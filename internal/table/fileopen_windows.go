//go:build windows

package table

import (
	"os"

	"github.com/hpungsan/souq/internal/errors"
)

// openFileNoFollow opens a file for writing.
// O_NOFOLLOW is not available on Windows.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens a file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}
