// Package local implements a filesystem-backed snapshot archive.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where snapshots are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes snapshots to the local filesystem. It implements
// feed.BlobStore and is the operator-friendly alternative to GCS for
// single-node deployments.
type BlobStore struct {
	baseDir string
}

// New creates a filesystem-backed blob store, creating BaseDir if needed and
// verifying it is writable up front so misconfiguration fails at startup.
func New(cfg Config) (*BlobStore, error) {
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
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// PutObject writes the snapshot under BaseDir and returns a file:// URI. The
// content type is ignored; the filesystem carries no such metadata.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)

	// Reject paths that escape BaseDir after cleaning.
	cleanBase := filepath.Clean(s.baseDir)
	cleanFull := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFull, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}
