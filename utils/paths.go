package utils

import (
	"path/filepath"
	"strings"
)

// Within reports whether path is root or lies below it. Both are compared
// lexically after cleaning.
func Within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// WithinAny reports whether path lies under one of roots once symlinks are
// resolved. Paths that do not exist yet are compared as written.
func WithinAny(roots []string, path string) bool {
	resolved := resolveLinks(path)
	for _, root := range roots {
		if Within(resolveLinks(root), resolved) {
			return true
		}
	}
	return false
}

func resolveLinks(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
