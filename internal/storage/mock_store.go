package storage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MemFileSystem is an in-memory FileSystem for tests. Directories are implied
// by file paths and may also be created explicitly.
type MemFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]struct{}
	calls MemCalls

	// Fault injection: a non-nil entry makes the operation fail for that path.
	writeErrors map[string]error
	readErrors  map[string]error
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	ReadFile  int
	WriteFile int
	MkdirAll  int
	ListFiles int
}

// NewMemFileSystem creates an empty in-memory filesystem.
func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{
		files:       make(map[string][]byte),
		dirs:        make(map[string]struct{}),
		writeErrors: make(map[string]error),
		readErrors:  make(map[string]error),
	}
}

// AddFile seeds a file and its parent directories.
func (m *MemFileSystem) AddFile(path string, content string) *MemFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.files[path] = []byte(content)
	m.addParentsLocked(path)
	return m
}

// FailWrite makes every WriteFile to path return err.
func (m *MemFileSystem) FailWrite(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrors[filepath.Clean(path)] = err
}

// FailRead makes every ReadFile of path return err.
func (m *MemFileSystem) FailRead(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrors[filepath.Clean(path)] = err
}

func (m *MemFileSystem) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	if _, ok := m.files[path]; ok {
		return true
	}
	_, ok := m.dirs[path]
	return ok
}

func (m *MemFileSystem) IsDir(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.dirs[filepath.Clean(path)]
	return ok
}

func (m *MemFileSystem) ListFiles(root string, filter ListFilter) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.ListFiles++

	root = filepath.Clean(root)
	if _, ok := m.dirs[root]; !ok {
		return nil, fmt.Errorf("list %s: %w", root, fs.ErrNotExist)
	}
	prefix := root + string(filepath.Separator)
	var out []string
	for path := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if filter == nil || filter(path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemFileSystem) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.MkdirAll++

	path = filepath.Clean(path)
	if _, ok := m.files[path]; ok {
		return fmt.Errorf("create directory %s: file exists", path)
	}
	m.dirs[path] = struct{}{}
	m.addParentsLocked(path)
	return nil
}

func (m *MemFileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.ReadFile++

	path = filepath.Clean(path)
	if err := m.readErrors[path]; err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemFileSystem) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.WriteFile++

	path = filepath.Clean(path)
	if err := m.writeErrors[path]; err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[path] = stored
	m.addParentsLocked(path)
	return nil
}

// Content returns the stored content of path (for testing).
func (m *MemFileSystem) Content(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(path)]
	return string(data), ok
}

// GetCalls returns the number of times each method was called.
func (m *MemFileSystem) GetCalls() MemCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *MemFileSystem) addParentsLocked(path string) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		m.dirs[dir] = struct{}{}
		if parent := filepath.Dir(dir); parent == dir {
			return
		}
	}
}
