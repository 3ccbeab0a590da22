// Package fsutil provides the filesystem safety primitives used when lintd
// rewrites files in place.
package fsutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileMode is used for files that do not exist yet.
const DefaultFileMode os.FileMode = 0o644

// WriteAtomic replaces the file at path with content via a temp file and
// rename, so a crash mid-write never leaves a truncated file behind. The
// existing file's mode is preserved; new files get DefaultFileMode.
func WriteAtomic(path string, content []byte) error {
	mode := DefaultFileMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}

// WriteAtomicIfChanged writes only when content differs from what is on
// disk. Reports whether a write happened.
func WriteAtomicIfChanged(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// New file, fall through to the write.
	case err != nil:
		return false, fmt.Errorf("read existing: %w", err)
	case bytes.Equal(existing, content):
		return false, nil
	}
	if err := WriteAtomic(path, content); err != nil {
		return false, err
	}
	return true, nil
}
