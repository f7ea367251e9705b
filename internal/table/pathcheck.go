package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/souq/internal/errors"
)

// ValidateExportPath checks a workbook or table export destination:
//  1. no directory traversal (..)
//  2. a .xlsx or .csv extension
//  3. the file sits directly in one of allowedDirs (no subdirectories)
//  4. neither the parent directory nor the file is a symlink
//
// Keeping files directly in an allowed directory leaves no intermediate
// component to swap between validation and open.
func ValidateExportPath(path string, allowedDirs []string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	switch filepath.Ext(cleaned) {
	case ".xlsx", ".csv":
	default:
		return errors.NewInvalidRequest("path must have .xlsx or .csv extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	dirs, err := resolveDirs(allowedDirs)
	if err != nil {
		return err
	}
	parentDir := filepath.Dir(absPath)
	if !isDirectlyIn(parentDir, dirs) {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
	}

	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// resolveDirs returns absolute, cleaned directories. Relative entries are
// ignored. Existing symlinked entries resolve to their target.
func resolveDirs(dirs []string) ([]string, error) {
	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if !filepath.IsAbs(d) {
			continue
		}
		abs := filepath.Clean(d)
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyIn(parentDir string, dirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range dirs {
		if parentDir == dir {
			return true
		}
	}
	return false
}

func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes a category name safe to use in a file name.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 && r != ' ' {
			b.WriteRune(r)
		} else if r == ' ' {
			b.WriteRune('_')
		}
	}
	s = b.String()
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unnamed"
	}
	return s
}
