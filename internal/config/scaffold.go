package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrScaffoldExists is returned when the scaffold target already exists.
var ErrScaffoldExists = errors.New("options file already exists")

// Defaults returns the default options document, keyed by extension name.
func Defaults() map[string]any {
	return map[string]any{
		"base64": map[string]any{
			"options": map[string]any{
				"max_bytes":          0,
				"extension_fallback": true,
			},
		},
	}
}

// Deploy writes the default options file into dir. An existing file is only
// replaced when overwrite is set.
func Deploy(dir string, overwrite bool) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return path, fmt.Errorf("%w: %s", ErrScaffoldExists, path)
	}
	data, err := json.MarshalIndent(Defaults(), "", "    ")
	if err != nil {
		return path, fmt.Errorf("encode defaults: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return path, fmt.Errorf("create %s: %w", dir, err)
	}
	// #nosec G306 - config scaffold is meant to be shared
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return path, fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
