package table

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/souq/internal/errors"
)

// WriteFileAtomic writes path through fn. Output goes to a temp file in the
// same directory which is renamed into place only after fn succeeds, so an
// existing table survives a failed run.
func WriteFileAtomic(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := fn(file); err != nil {
		if _, ok := err.(*errors.SouqError); ok {
			return err
		}
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close output file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("output path is a symlink: %s", path))
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				if rmErr := os.Remove(path); rmErr == nil {
					err = os.Rename(tempPath, path)
				}
			}
		}
		if err != nil {
			return errors.NewInternal(fmt.Errorf("failed to finalize %s: %w", path, err))
		}
	}

	success = true
	return nil
}

// OpenRead opens path for reading, refusing a symlinked final component.
func OpenRead(path string) (*os.File, error) {
	return openFileNoFollowRead(path)
}
