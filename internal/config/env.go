package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
)

// Environment variables read at startup.
const (
	EnvHome     = "SOUQ_HOME"
	EnvLogLevel = "SOUQ_LOG_LEVEL"
)

// LoadEnv loads KEY=VALUE pairs from an env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no env file found, using OS environment", slog.String("path", path))
			return nil
		}
		return err
	}
	return nil
}

// BaseDir returns $SOUQ_HOME, or ~/.souq.
func BaseDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".souq"), nil
}

// ApplyEnv overrides config fields from the environment.
func (c *Config) ApplyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}
