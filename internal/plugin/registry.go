package plugin

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/logfields"
)

// Registry loads extensions once per name and tracks the merged options map
// ({name: {options: {...}}}) extensions read their options from.
type Registry struct {
	mu       sync.RWMutex
	resolver Resolver
	loaded   map[string]Spec
	order    []string
	options  map[string]any
}

// NewRegistry creates a registry resolving module references through resolver.
func NewRegistry(resolver Resolver) *Registry {
	if resolver == nil {
		resolver = NewBuiltinResolver()
	}
	return &Registry{
		resolver: resolver,
		loaded:   make(map[string]Spec),
		options:  make(map[string]any),
	}
}

// MergeOptions merges an options document into the registry, later keys win.
func (r *Registry) MergeOptions(doc map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.Copy(r.options, doc)
}

// Options returns a copy of the merged options map.
func (r *Registry) Options() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.options)
}

// Load parses raw ("name" or "name:ref"), resolves and invokes the extension.
// explicit options take precedence over the options map entry for the name.
func (r *Registry) Load(raw string, explicit map[string]any, host Host) error {
	spec := ParseSpec(raw)
	if spec.Name == "" {
		return r.fail(spec, ErrExtensionNotFound, fmt.Errorf("empty extension name"), "extension not found")
	}

	r.mu.RLock()
	_, dup := r.loaded[spec.Name]
	r.mu.RUnlock()
	if dup {
		return r.fail(spec, ErrAlreadyLoaded, nil, "extension already loaded")
	}

	value, err := r.resolver.Resolve(spec.Ref)
	if err != nil {
		return r.fail(spec, ErrExtensionNotFound, err, "extension not found")
	}
	factory, ok := asFactory(value)
	if !ok {
		return r.fail(spec, ErrExtensionNotCallable, fmt.Errorf("got %T", value), "extension is not callable")
	}

	options := explicit
	if options == nil {
		options, err = r.lookupOptions(spec.Name)
		if err != nil {
			return r.fail(spec, ErrInvalidOptionsObject, err, "invalid extension options")
		}
	}

	if err := invoke(factory, options, host); err != nil {
		return r.fail(spec, ErrExtensionFailed, err, "extension failed")
	}

	r.mu.Lock()
	r.loaded[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	r.mu.Unlock()

	if host != nil && host.Logger() != nil {
		host.Logger().Debug("Loaded extension", logfields.Extension(spec.String()))
	}
	return nil
}

// Has reports whether name was loaded.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[name]
	return ok
}

// Loaded returns the loaded extension names in load order.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) lookupOptions(name string) (map[string]any, error) {
	r.mu.RLock()
	entry, ok := r.options[name]
	r.mu.RUnlock()
	if !ok || entry == nil {
		return map[string]any{}, nil
	}
	obj, ok := entry.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entry for %q must be an object, got %T", name, entry)
	}
	opts, ok := obj["options"]
	if !ok || opts == nil {
		return map[string]any{}, nil
	}
	out, ok := opts.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("options for %q must be an object, got %T", name, opts)
	}
	return out, nil
}

func (r *Registry) fail(spec Spec, sentinel, cause error, message string) error {
	wrapped := sentinel
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return dberrors.PluginError(message).
		WithCause(wrapped).
		WithContext("file", spec.String()).
		WithContext("extension", spec.Name).
		Build()
}

func asFactory(value any) (Factory, bool) {
	switch f := value.(type) {
	case Factory:
		return f, f != nil
	case func(map[string]any, Host) error:
		return f, f != nil
	default:
		return nil, false
	}
}

// invoke calls factory, converting a panic into an error.
func invoke(factory Factory, options map[string]any, host Host) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			if host != nil && host.Logger() != nil {
				host.Logger().Error("Extension panicked", slog.Any("panic", p))
			}
		}
	}()
	return factory(options, host)
}
