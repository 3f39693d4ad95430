// Package plugin loads named build extensions. An extension is a Factory that
// receives its options and the engine as a Host, and mutates the engine's
// configuration (compiler functions, load paths, processors) during the load
// phase of a run.
package plugin

import (
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// Host is the engine surface extensions may use.
type Host interface {
	// CompilerOptions returns the engine's compiler options for mutation.
	CompilerOptions() *compiler.Options

	// Processors returns the engine's post-process chain for mutation.
	Processors() *postprocess.Chain

	// SourceRoot returns the root of the current run, if one is in flight.
	SourceRoot() (string, bool)

	// FileSystem returns the filesystem the engine reads and writes through.
	FileSystem() storage.FileSystem

	// Cache returns the engine-owned cache with the given name, creating it.
	Cache(name string) *Cache

	// Logger returns the engine logger.
	Logger() *slog.Logger
}

// Factory is an extension entry point.
type Factory func(options map[string]any, host Host) error

// Spec identifies an extension: Name is the dedup key, Ref the module reference
// handed to the Resolver.
type Spec struct {
	Name string
	Ref  string
}

// ParseSpec parses "name" or "name:ref". The reference defaults to the name.
func ParseSpec(raw string) Spec {
	raw = strings.TrimSpace(raw)
	name, ref, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	ref = strings.TrimSpace(ref)
	if !ok || ref == "" {
		ref = name
	}
	return Spec{Name: name, Ref: ref}
}

func (s Spec) String() string {
	if s.Ref == s.Name {
		return s.Name
	}
	return s.Name + ":" + s.Ref
}
