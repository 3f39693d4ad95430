// Package compiler defines the stylesheet compiler boundary and ships two
// implementations: an in-process esbuild CSS bundler and a dart-sass runner.
package compiler

import (
	"context"
	"slices"
)

// OutputStyle selects how compiled CSS is formatted.
type OutputStyle string

const (
	StyleExpanded   OutputStyle = "expanded"
	StyleCompressed OutputStyle = "compressed"
)

// Function is a host function callable from stylesheets. It receives the
// positional arguments (unquoted, defaults applied) and returns the CSS value
// that replaces the call.
type Function func(ctx context.Context, args []string) (string, error)

// Options configure a single compilation.
type Options struct {
	OutputStyle OutputStyle
	SourceMap   bool
	LoadPaths   []string

	// Functions maps a signature such as "load-base64($source, $mime: null)"
	// to its implementation.
	Functions map[string]Function

	// HostFunctions enables the host function pass over compiled output.
	// Functions registered while it is false are not evaluated.
	HostFunctions bool
}

// Clone returns a copy whose slices and maps can be modified independently.
func (o Options) Clone() Options {
	out := o
	out.LoadPaths = slices.Clone(o.LoadPaths)
	if o.Functions != nil {
		out.Functions = make(map[string]Function, len(o.Functions))
		for k, v := range o.Functions {
			out.Functions[k] = v
		}
	}
	return out
}

// Compressed reports whether the output style is compressed.
func (o Options) Compressed() bool {
	return o.OutputStyle == StyleCompressed
}

// Request is one compilation: the root template is compiled as if it lived at File.
type Request struct {
	Template string
	File     string
	Options  Options
}

// Result is the output of a successful compilation.
type Result struct {
	CSS           string
	SourceMap     string
	IncludedFiles []string
}

// Compiler turns a root template into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
}

// ExtensionProvider is implemented by compilers that declare which source
// file extensions they accept.
type ExtensionProvider interface {
	Extensions() []string
}

// TemplateProvider is implemented by compilers that supply their own root
// template text.
type TemplateProvider interface {
	RootTemplate() string
}

// DefaultExtensions are the recognized style source extensions when the
// compiler does not declare its own.
var DefaultExtensions = []string{".scss", ".sass"}

// ExtensionsFor returns the source extensions accepted by c.
func ExtensionsFor(c Compiler) []string {
	if p, ok := c.(ExtensionProvider); ok {
		if exts := p.Extensions(); len(exts) > 0 {
			return exts
		}
	}
	return DefaultExtensions
}
