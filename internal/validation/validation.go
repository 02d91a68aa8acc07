// Package validation provides input validation for user-supplied paths
// to prevent path traversal and resource exhaustion issues in the CLI.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Limits on user-supplied paths.
const (
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal   = errors.New("path traversal detected")
	ErrPathTooLong     = errors.New("path too long")
	ErrFilenameTooLong = errors.New("filename too long")
	ErrEmptyPath       = errors.New("path cannot be empty")
	ErrNullByte        = errors.New("null byte in path")
)

// ValidatePath checks a user-supplied path for basic safety: emptiness,
// length limits, and embedded null bytes. It does not resolve symlinks.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if len(filepath.Base(path)) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if strings.ContainsRune(path, 0) {
		return ErrNullByte
	}
	return nil
}

// SanitizePath validates a relative path (for example an archive entry
// name) against a base directory and ensures it cannot escape it.
// Returns the cleaned path relative to the base directory.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	cleanPath := filepath.Clean(userPath)

	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", ErrPathTraversal
	}

	return cleanPath, nil
}
