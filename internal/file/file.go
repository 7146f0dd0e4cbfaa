// Package file holds small filesystem helpers for the temp copies the
// extraction pipeline works on.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDirPerm os.FileMode = 0o750

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// SaveTemp writes data to a freshly created temp file under dir and
// returns its path. The caller exclusively owns the file and must remove
// it when done.
func SaveTemp(dir, name string, data []byte) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp(dir, sanitizeName(name)+"-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpName := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("sync temp: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp: %w", err)
	}
	return tmpName, nil
}

// RemoveQuiet deletes the file, ignoring errors. Used on cleanup paths
// where the file may already be gone.
func RemoveQuiet(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// sanitizeName reduces an uploaded filename to a safe temp-file prefix:
// no path components, no wildcard characters.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "upload"
	}
	return base
}
