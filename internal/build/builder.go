package build

import (
	"log/slog"
	"sync"
	"text/template"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/config"
	"git.home.luguber.info/inful/stylebuild/internal/metrics"
	"git.home.luguber.info/inful/stylebuild/internal/plugin"
	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// Default output naming.
const (
	DefaultOutputExt      = ".css"
	DefaultMinifiedSuffix = ".min"
)

// OptionsLoader finds and reads the extension options file.
type OptionsLoader interface {
	Load(d config.Discovery) (*config.Loaded, error)
}

// Builder compiles every style file of a source into a target directory. It is
// also the Host extensions configure during the load phase of a run.
type Builder struct {
	// Strict makes every error abort the run. Loose runs log per-file errors
	// and continue with the next file.
	Strict  bool
	Verbose bool

	// Environment is exposed to the root template; "production" also sets the
	// production flag.
	Environment string

	// Prepend is rendered into the root template before the import.
	Prepend string

	// Options are the compiler options of every compilation in a run.
	Options compiler.Options

	// PostProcess enables the processor chain.
	PostProcess bool

	OutputExt      string
	MinifiedSuffix string

	// OptionsDir, NoOptions and WorkingDir drive options file discovery.
	OptionsDir string
	NoOptions  bool
	WorkingDir string

	compiler      compiler.Compiler
	processors    postprocess.Chain
	fs            storage.FileSystem
	registry      *plugin.Registry
	caches        *plugin.Caches
	optionsLoader OptionsLoader
	recorder      metrics.Recorder
	logger        *slog.Logger

	mu      sync.Mutex
	current *run
	tmpl    *template.Template
}

type run struct {
	source *SourceDescriptor
	target *TargetDescriptor
}

// NewBuilder creates a strict builder compiling with c on the local disk.
func NewBuilder(c compiler.Compiler) *Builder {
	return &Builder{
		Strict:         true,
		Options:        compiler.Options{OutputStyle: compiler.StyleExpanded},
		OutputExt:      DefaultOutputExt,
		MinifiedSuffix: DefaultMinifiedSuffix,
		compiler:       c,
		fs:             storage.NewOSFileSystem(),
		registry:       plugin.NewRegistry(nil),
		caches:         plugin.NewCaches(),
		recorder:       metrics.NoopRecorder{},
	}
}

// WithFileSystem replaces the filesystem sources are read from and artifacts
// written to.
func (b *Builder) WithFileSystem(fs storage.FileSystem) *Builder {
	b.fs = fs
	return b
}

// WithRegistry replaces the extension registry.
func (b *Builder) WithRegistry(r *plugin.Registry) *Builder {
	b.registry = r
	return b
}

// WithProcessors sets the post-process chain.
func (b *Builder) WithProcessors(processors ...postprocess.Processor) *Builder {
	b.processors = append(postprocess.Chain(nil), processors...)
	return b
}

// WithOptionsLoader sets the options file loader. Without one no options
// file is read.
func (b *Builder) WithOptionsLoader(l OptionsLoader) *Builder {
	b.optionsLoader = l
	return b
}

// WithRecorder sets the metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	b.recorder = r
	return b
}

// WithLogger sets the report sink. A nil logger silences the builder.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Registry returns the extension registry.
func (b *Builder) Registry() *plugin.Registry { return b.registry }

// Production reports whether the environment is "production".
func (b *Builder) Production() bool { return b.Environment == "production" }

// LoadExtension loads a single extension outside of a run. options, when not
// nil, take precedence over the options file entry.
func (b *Builder) LoadExtension(spec string, options map[string]any) error {
	return b.registry.Load(spec, options, b)
}

// outputExt is the extension of written CSS, with the minified suffix when
// the output is compressed.
func (b *Builder) outputExt() string {
	ext := b.OutputExt
	if ext == "" {
		ext = DefaultOutputExt
	}
	if b.Options.Compressed() {
		return b.MinifiedSuffix + ext
	}
	return ext
}

func (b *Builder) rootTemplate() (*template.Template, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tmpl != nil {
		return b.tmpl, nil
	}
	tmpl, err := ParseRootTemplate(rootTemplateText(b.compiler))
	if err != nil {
		return nil, err
	}
	b.tmpl = tmpl
	return tmpl, nil
}

// Host implementation.

func (b *Builder) CompilerOptions() *compiler.Options { return &b.Options }

func (b *Builder) Processors() *postprocess.Chain { return &b.processors }

func (b *Builder) SourceRoot() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.source == nil {
		return "", false
	}
	return b.current.source.Root, true
}

func (b *Builder) FileSystem() storage.FileSystem { return b.fs }

func (b *Builder) Cache(name string) *plugin.Cache { return b.caches.Get(name) }

func (b *Builder) Logger() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

var _ plugin.Host = (*Builder)(nil)
