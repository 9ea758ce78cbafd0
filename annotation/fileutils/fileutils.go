package fileutils

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

func FileExists(fsys afero.Fs, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// Truncate trims s and cuts it to max bytes, appending an ellipsis when it was cut.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// WriteFileAtomic writes data to a temp file in the target directory and renames it over path,
// so readers see either the old file or the new one.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte, mode fs.FileMode) error {
	if path == "" {
		return errors.New("WriteFileAtomic: empty path")
	}
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("WriteFileAtomic: mkdir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".tmp_results_*")
	if err != nil {
		return fmt.Errorf("WriteFileAtomic: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = fsys.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("WriteFileAtomic: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("WriteFileAtomic: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("WriteFileAtomic: close temp: %w", err)
	}
	if err := fsys.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("WriteFileAtomic: chmod temp: %w", err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("WriteFileAtomic: rename to %s: %w", path, err)
	}
	return nil
}
