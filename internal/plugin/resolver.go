package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Resolver turns a module reference into an extension value. The value must be
// a Factory (or a function with the same signature) to be callable.
type Resolver interface {
	Resolve(ref string) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ref string) (any, error)

func (f ResolverFunc) Resolve(ref string) (any, error) { return f(ref) }

// BuiltinResolver resolves references against a table of compiled-in factories.
type BuiltinResolver struct {
	mu        sync.RWMutex
	factories map[string]any
}

// NewBuiltinResolver creates an empty builtin table.
func NewBuiltinResolver() *BuiltinResolver {
	return &BuiltinResolver{factories: make(map[string]any)}
}

// Register adds value under name. Values that are not a Factory are accepted
// so callers can register placeholders; loading them fails as not callable.
func (r *BuiltinResolver) Register(name string, value any) *BuiltinResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = value
	return r
}

func (r *BuiltinResolver) Resolve(ref string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.factories[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExtensionNotFound, ref)
	}
	return v, nil
}

// Names returns the registered names in sorted order.
func (r *BuiltinResolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainResolver tries each resolver in order. A resolver reporting
// ErrExtensionNotFound passes to the next one; any other error stops the chain.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(ref string) (any, error) {
	for _, r := range c {
		v, err := r.Resolve(ref)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrExtensionNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrExtensionNotFound, ref)
}
