package fsio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	renameAttempts = 5
	renameBackoff  = 200 * time.Millisecond
)

// ErrFallbackWrite reports that the rename path was abandoned and the data
// was written in place instead. The content on disk is correct; callers that
// care about the durability downgrade match it with errors.Is.
var ErrFallbackWrite = errors.New("atomic rename failed, wrote in place")

// EnsureParent creates the parent directory of path if missing.
func EnsureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory followed by a rename, so a concurrent reader sees either the old
// content or the new, never a partial file. The rename is retried with a
// growing backoff (Windows fails it while a reader holds the target); if all
// attempts fail the data is written in place rather than dropped and the
// returned error wraps ErrFallbackWrite.
func WriteFileAtomic(path string, data []byte) error {
	if err := EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}

	var renameErr error
	for attempt := 0; attempt < renameAttempts; attempt++ {
		if renameErr = os.Rename(tmpName, path); renameErr == nil {
			return nil
		}
		time.Sleep(renameBackoff + renameBackoff*time.Duration(attempt))
	}
	os.Remove(tmpName)
	if err := WriteFileDirect(path, data); err != nil {
		return fmt.Errorf("rename failed (%v), direct write failed: %w", renameErr, err)
	}
	return fmt.Errorf("%w: %v", ErrFallbackWrite, renameErr)
}

// WriteFileDirect writes data straight to path, creating parents as needed.
func WriteFileDirect(path string, data []byte) error {
	if err := EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
