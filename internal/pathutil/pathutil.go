// Package pathutil provides shared helpers for the file paths named in
// pipeline configurations (detection tables, colour files, model scripts).
package pathutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrFileTooLarge is returned by ReadFileLimited when a file exceeds its limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ValidateFilePath rejects empty paths, null bytes and ".." segments.
// The check runs on segments before cleaning so that "a/../../etc" cannot
// collapse into an innocent-looking path first.
func ValidateFilePath(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(filePath, "\x00") {
		return fmt.Errorf("file path contains invalid characters")
	}
	for _, segment := range strings.Split(filepath.ToSlash(filePath), "/") {
		if segment == ".." {
			return fmt.Errorf("file path contains path traversal: %q", filePath)
		}
	}
	return nil
}

// ReadFileLimited validates path and reads at most maxBytes from it.
func ReadFileLimited(path string, maxBytes int64) ([]byte, error) {
	if err := ValidateFilePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	if int64(len(content)) > maxBytes {
		return nil, fmt.Errorf("%q: %w (%d bytes)", path, ErrFileTooLarge, maxBytes)
	}
	return content, nil
}

// HasExtension reports whether path ends in one of exts (case-insensitive,
// each given with its leading dot).
func HasExtension(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
