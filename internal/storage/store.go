// Package storage provides the filesystem abstraction the build pipeline reads
// sources from and writes artifacts to.
package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// FileSystem is the set of filesystem operations the build pipeline needs.
// Paths are absolute or relative to the process working directory.
type FileSystem interface {
	// Exists reports whether a file or directory exists at path.
	Exists(path string) bool

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool

	// ListFiles walks root recursively and returns every regular file accepted
	// by filter, in lexical order.
	ListFiles(root string, filter ListFilter) ([]string, error)

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error

	// ReadFile returns the contents of path.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to path, creating parent directories as needed.
	WriteFile(path string, data []byte) error
}

// ListFilter decides whether a listed file is kept. A nil filter keeps all files.
type ListFilter func(path string) bool

// ErrNotFound is returned when a path does not exist.
var ErrNotFound = fs.ErrNotExist

// IsNotFound returns true if err indicates a missing path.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ExtensionFilter keeps files whose extension is one of exts (case-insensitive)
// and whose base name does not start with any of the excluded prefixes.
func ExtensionFilter(exts []string, excludePrefixes ...string) ListFilter {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return func(path string) bool {
		base := filepath.Base(path)
		for _, prefix := range excludePrefixes {
			if strings.HasPrefix(base, prefix) {
				return false
			}
		}
		_, ok := allowed[strings.ToLower(filepath.Ext(base))]
		return ok
	}
}
