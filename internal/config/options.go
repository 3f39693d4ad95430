// Package config discovers and loads the extension options file and writes
// the default scaffold.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileName is the name of the options file.
const FileName = ".stylebuild.json"

// ErrOptionsNotFound is returned when an explicitly configured options
// directory has no options file.
var ErrOptionsNotFound = errors.New("options file not found")

// Discovery describes where to look for the options file. An explicit Dir is
// the only candidate; otherwise, unless Disabled, the working directory and
// then the source root are tried.
type Discovery struct {
	Dir        string
	Disabled   bool
	WorkingDir string
	SourceRoot string
}

// Candidates returns the options file paths to try, in order.
func (d Discovery) Candidates() []string {
	if d.Dir != "" {
		return []string{filepath.Join(d.Dir, FileName)}
	}
	if d.Disabled {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, dir := range []string{d.WorkingDir, d.SourceRoot} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, FileName)
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}

// Loaded is a parsed options file.
type Loaded struct {
	Path    string
	Options map[string]any
}

// Loader loads the options file from disk.
type Loader struct {
	defaults map[string]any
}

// NewLoader creates a loader that merges the file over defaults.
func NewLoader(defaults map[string]any) *Loader {
	return &Loader{defaults: defaults}
}

// Load returns the first existing candidate, parsed. It returns nil, nil when
// discovery finds nothing and no explicit directory was configured.
func (l *Loader) Load(d Discovery) (*Loaded, error) {
	for _, path := range d.Candidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		opts, err := l.parse(path)
		if err != nil {
			return nil, err
		}
		return &Loaded{Path: path, Options: opts}, nil
	}
	if d.Dir != "" {
		return nil, fmt.Errorf("%w: %s", ErrOptionsNotFound, filepath.Join(d.Dir, FileName))
	}
	return nil, nil
}

// parse reads path with the YAML parser, which also accepts JSON.
func (l *Loader) parse(path string) (map[string]any, error) {
	k := koanf.New(".")
	if len(l.defaults) > 0 {
		if err := k.Load(confmap.Provider(l.defaults, ""), nil); err != nil {
			return nil, fmt.Errorf("load defaults: %w", err)
		}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return k.Raw(), nil
}
