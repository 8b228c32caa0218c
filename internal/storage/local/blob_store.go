// Package local writes artifacts to the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/logo-resolver/internal/storage"
)

// Config captures the parameters for the local filesystem sink.
type Config struct {
	// BaseDir is the output directory. It is created when missing.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// Prefix is an optional subdirectory under BaseDir.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// Sink writes artifacts under BaseDir.
type Sink struct {
	baseDir string
	prefix  string
}

// New creates a filesystem sink after checking BaseDir is a writable directory.
func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory %s is not a directory", cfg.BaseDir)
	}

	probe, err := os.CreateTemp(cfg.BaseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("remove probe file: %w", err)
	}

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	return &Sink{baseDir: abs, prefix: cfg.Prefix}, nil
}

// Store writes data to <BaseDir>/<Prefix>/<name> and returns a file:// URI.
// Distinct names never share a file, so concurrent writers are safe.
func (s *Sink) Store(_ context.Context, name string, _ string, data []byte) (string, error) {
	key, err := storage.ObjectKey(s.prefix, name)
	if err != nil {
		return "", err //nolint:wrapcheck // already descriptive
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(filepath.Clean(fullPath), s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected for %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return "file://" + filepath.ToSlash(fullPath), nil
}
