// Package fsops applies generated file operations to a workspace.
package fsops

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagewright/pagewright/internal/models"
)

// FileSystem is the external collaborator that receives generated files.
type FileSystem interface {
	Open(path string) error
	Write(path, content string) error
	Remove(path string) error
}

// DirWriter writes generated files under a root directory, rejecting
// paths that escape it.
type DirWriter struct {
	root   string
	logger *slog.Logger
}

// NewDirWriter creates a DirWriter rooted at dir.
func NewDirWriter(dir string, logger *slog.Logger) *DirWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirWriter{root: dir, logger: logger}
}

// resolve joins path onto the root and rejects traversal outside it.
func (w *DirWriter) resolve(path string) (string, error) {
	full := filepath.Join(w.root, filepath.Clean("/"+path))
	rel, err := filepath.Rel(w.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return full, nil
}

// Open ensures the file and its parent directories exist.
func (w *DirWriter) Open(path string) error {
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	return f.Close()
}

// Write replaces the file's content, creating parent directories as needed.
func (w *DirWriter) Write(path, content string) error {
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Remove deletes the file if present.
func (w *DirWriter) Remove(path string) error {
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Apply surfaces file operations to the collaborator in emission order:
// one open/write (or remove) per operation. A per-file failure is logged
// and does not abort the remaining operations. Returns the number of
// operations applied successfully.
func Apply(fs FileSystem, ops []models.FileOperation, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	applied := 0
	for _, op := range ops {
		var err error
		switch op.Action {
		case models.FileActionDelete:
			err = fs.Remove(op.Path)
		default: // create and update both materialize the file
			if err = fs.Open(op.Path); err == nil {
				err = fs.Write(op.Path, op.Content)
			}
		}
		if err != nil {
			logger.Error("file operation failed", "path", op.Path, "action", op.Action, "error", err)
			continue
		}
		applied++
	}
	return applied
}
