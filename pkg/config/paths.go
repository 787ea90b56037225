package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes every allowed root
var ErrOutsideRoot = errors.New("path is outside the allowed roots")

func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ResolveRelativePath makes path absolute. Relative paths are taken from
// configDir, the directory of the config file that named them.
func ResolveRelativePath(configDir, path string) (string, error) {
	path, err := expandTilde(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, path)
	}
	return filepath.Clean(path), nil
}

// NormalizePath expands ~ and returns a clean absolute path
func NormalizePath(path string) (string, error) {
	path, err := expandTilde(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

// realPath normalizes path and follows symlinks in its longest existing prefix
func realPath(path string) (string, error) {
	abs, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	rest := ""
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
	}
}

// ValidatePathSecurity rejects paths that resolve outside all allowedRoots.
// Symlinks are followed, so a link inside a root that points elsewhere fails.
func ValidatePathSecurity(path string, allowedRoots []string) error {
	target, err := realPath(path)
	if err != nil {
		return fmt.Errorf("failed to normalize path: %w", err)
	}

	for _, root := range allowedRoots {
		base, err := realPath(root)
		if err != nil {
			continue
		}
		if target == base || strings.HasPrefix(target, base+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
}
