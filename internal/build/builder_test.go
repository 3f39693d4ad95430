package build

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/config"
	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/metrics"
	"git.home.luguber.info/inful/stylebuild/internal/plugin"
	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// fakeCompiler renders every file to a comment naming it, unless it is listed
// in fail or empty.
type fakeCompiler struct {
	mu       sync.Mutex
	fail     map[string]error
	empty    map[string]bool
	requests []compiler.Request
}

func (c *fakeCompiler) Compile(_ context.Context, req compiler.Request) (*compiler.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if err := c.fail[req.File]; err != nil {
		return nil, err
	}
	if c.empty[req.File] {
		return &compiler.Result{CSS: "  \n"}, nil
	}
	res := &compiler.Result{
		CSS:           "/* " + req.File + " */\nbody{color:red}\n",
		IncludedFiles: []string{req.File},
	}
	if req.Options.SourceMap {
		res.SourceMap = `{"version":3,"sources":["` + req.File + `"]}`
	}
	return res, nil
}

func (c *fakeCompiler) files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.requests))
	for _, req := range c.requests {
		out = append(out, req.File)
	}
	return out
}

// cssCompiler is a fakeCompiler taking plain .css sources.
type cssCompiler struct {
	fakeCompiler
}

func (*cssCompiler) Extensions() []string { return []string{".css"} }

type fakeLoader struct {
	loaded    *config.Loaded
	err       error
	discovery config.Discovery
}

func (l *fakeLoader) Load(d config.Discovery) (*config.Loaded, error) {
	l.discovery = d
	return l.loaded, l.err
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	results  map[metrics.ResultLabel]int
	outcomes map[metrics.RunOutcomeLabel]int
	stages   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		results:  map[metrics.ResultLabel]int{},
		outcomes: map[metrics.RunOutcomeLabel]int{},
		stages:   map[string]int{},
	}
}

func (r *countingRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	r.mu.Lock()
	r.stages[stage]++
	r.mu.Unlock()
}

func (r *countingRecorder) IncFileResult(result metrics.ResultLabel) {
	r.mu.Lock()
	r.results[result]++
	r.mu.Unlock()
}

func (r *countingRecorder) IncRunOutcome(outcome metrics.RunOutcomeLabel) {
	r.mu.Lock()
	r.outcomes[outcome]++
	r.mu.Unlock()
}

func threeFileFS() *storage.MemFileSystem {
	return storage.NewMemFileSystem().
		AddFile("/src/a.scss", "a{}").
		AddFile("/src/b.scss", "b{}").
		AddFile("/src/c.scss", "c{}").
		AddFile("/src/_partial.scss", "")
}

func newTestBuilder(fs storage.FileSystem, c compiler.Compiler) *Builder {
	return NewBuilder(c).WithFileSystem(fs).WithLogger(nil)
}

func TestRunSingleFile(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/proj/src/main.scss", "body{}")
	comp := &fakeCompiler{}
	b := newTestBuilder(fs, comp)

	stats, err := b.Run(context.Background(), "/proj/src", "/proj/dist", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, 1, stats.Rendered)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 0, stats.Maps)
	assert.NotEmpty(t, stats.RunID)
	assert.True(t, stats.Target.Created)

	css, ok := fs.Content("/proj/dist/main.css")
	require.True(t, ok)
	assert.Equal(t, "/* /proj/src/main.scss */\nbody{color:red}\n", css)

	require.Len(t, stats.Files, 1)
	rec := stats.Files[0]
	assert.Equal(t, "./main.scss", rec.Input.Rel)
	assert.Equal(t, "./main.css", rec.Output.Rel)
	assert.False(t, rec.Skipped)
	assert.True(t, rec.Timings.Total.IsSet())
	assert.True(t, rec.Timings.Rendered.IsSet())
	assert.False(t, rec.Timings.Processed.IsSet())
	assert.True(t, rec.Timings.Written.IsSet())
	_, hasCSS := rec.CSS()
	assert.False(t, hasCSS, "content is released after the file is done")

	_, inRun := b.SourceRoot()
	assert.False(t, inRun, "current run is cleared after Run")
}

func TestRunRootTemplateAndLoadPaths(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/sub/main.scss", "")
	comp := &fakeCompiler{}
	b := newTestBuilder(fs, comp)
	b.Environment = "production"
	b.Prepend = "$brand: blue;"
	b.Options.LoadPaths = []string{"/vendor"}

	_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)

	require.Len(t, comp.requests, 1)
	req := comp.requests[0]
	assert.Equal(t, "/src/sub/main.scss", req.File)
	assert.Equal(t, []string{"/src/sub", "/vendor"}, req.Options.LoadPaths)
	assert.Equal(t, []string{"/vendor"}, b.Options.LoadPaths, "builder options are not mutated per file")
	assert.Contains(t, req.Template, `$environment: "production";`)
	assert.Contains(t, req.Template, "$production: true;")
	assert.Contains(t, req.Template, "$brand: blue;")
	assert.Contains(t, req.Template, `@import "/src/sub/main.scss";`)
}

func TestRunStrictAbortsOnFirstFailure(t *testing.T) {
	fs := threeFileFS()
	cause := errors.New(`expected "}"`)
	comp := &fakeCompiler{fail: map[string]error{"/src/b.scss": cause}}
	rec := newCountingRecorder()
	b := newTestBuilder(fs, comp).WithRecorder(rec)

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.Error(t, err)
	assert.Nil(t, stats)

	assert.True(t, errors.Is(err, ErrRenderFailed))
	assert.True(t, errors.Is(err, cause))
	classified, ok := dberrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "render failed: /src/b.scss", classified.Short())

	assert.Equal(t, []string{"/src/a.scss", "/src/b.scss"}, comp.files(), "c is never compiled")
	_, wroteC := fs.Content("/dist/c.css")
	assert.False(t, wroteC)
	assert.Equal(t, 1, rec.outcomes[metrics.RunOutcomeFailed])
}

func TestRunLooseContinues(t *testing.T) {
	fs := threeFileFS()
	comp := &fakeCompiler{fail: map[string]error{"/src/b.scss": errors.New("undefined variable")}}
	var logs bytes.Buffer
	b := NewBuilder(comp).WithFileSystem(fs).WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	b.Strict = false

	var seen []string
	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{
		AfterFile: func(r *Record, _ *Stats, _ *Builder) { seen = append(seen, r.Input.Rel) },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Sources)
	assert.Equal(t, 2, stats.Rendered)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, []string{"./a.scss", "./b.scss", "./c.scss"}, seen)

	failed := stats.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "/src/b.scss", failed[0].SourceFile)
	assert.True(t, failed[0].Skipped)
	assert.True(t, errors.Is(failed[0].Errors()[0], ErrRenderFailed))
	assert.Len(t, stats.Skipped(), 1)

	assert.Contains(t, logs.String(), "render failed: /src/b.scss")
	assert.NotContains(t, logs.String(), "undefined variable", "non-verbose logs carry the short form")

	_, ok := fs.Content("/dist/c.css")
	assert.True(t, ok)
}

func TestRunLooseVerboseLogsCauseChain(t *testing.T) {
	fs := threeFileFS()
	comp := &fakeCompiler{fail: map[string]error{"/src/a.scss": errors.New("undefined variable")}}
	var logs bytes.Buffer
	b := NewBuilder(comp).WithFileSystem(fs).WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	b.Strict = false
	b.Verbose = true

	_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "undefined variable")
}

func TestRunEmptyOutput(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	comp := &fakeCompiler{empty: map[string]bool{"/src/a.scss": true}}
	b := newTestBuilder(fs, comp)

	_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyOutput))
	assert.True(t, errors.Is(err, ErrRenderFailed))
}

func TestRunWritesMaps(t *testing.T) {
	fs := storage.NewMemFileSystem().
		AddFile("/src/a.scss", "").
		AddFile("/src/sub/b.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	b.Options.SourceMap = true

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 2, stats.Maps)
	for _, path := range []string{"/dist/a.css.map", "/dist/sub/b.css.map"} {
		content, ok := fs.Content(path)
		require.True(t, ok, path)
		assert.Contains(t, content, `"version":3`)
	}
	assert.True(t, stats.Files[0].MapWritten)

	css, _ := fs.Content("/dist/sub/b.css")
	assert.True(t, strings.HasSuffix(css, "body{color:red}\n/*# sourceMappingURL=b.css.map */\n"), css)
	assert.Equal(t, int64(len(css)), stats.Files[1].Size)
}

func TestRunMapAnnotationFollowsMinifiedName(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	b.Options.SourceMap = true
	b.Options.OutputStyle = compiler.StyleCompressed

	_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)
	css, _ := fs.Content("/dist/a.min.css")
	assert.Contains(t, css, "/*# sourceMappingURL=a.min.css.map */")
	_, ok := fs.Content("/dist/a.min.css.map")
	assert.True(t, ok)
}

func TestRunCompressedUsesMinifiedName(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	b.Options.OutputStyle = compiler.StyleCompressed

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "./a.min.css", stats.Files[0].Output.Rel)
	_, ok := fs.Content("/dist/a.min.css")
	assert.True(t, ok)
}

func TestRunPostProcess(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	b.PostProcess = true

	var got postprocess.Input
	b.WithProcessors(postprocess.ProcessorFunc(func(_ context.Context, in postprocess.Input) (*postprocess.Output, error) {
		got = in
		return &postprocess.Output{CSS: "body{color:red}", Messages: []string{"prefixed"}}, nil
	}))

	var history []string
	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{
		AfterFile: func(r *Record, _ *Stats, _ *Builder) { history = r.CSSHistory() },
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, "/src/a.scss", got.From)
	assert.Equal(t, "/dist/a.css", got.To)
	assert.Contains(t, got.CSS, "/* /src/a.scss */")
	assert.Len(t, history, 2)

	css, _ := fs.Content("/dist/a.css")
	assert.Equal(t, "body{color:red}", css)
	require.NotNil(t, stats.Files[0].Stats.Processed)
	assert.Equal(t, []string{"prefixed"}, stats.Files[0].Stats.Processed.Messages)
	assert.True(t, stats.Files[0].Timings.Processed.IsSet())
}

func TestRunPostProcessFailure(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	b.PostProcess = true
	cause := errors.New("unknown at-rule")
	b.WithProcessors(postprocess.ProcessorFunc(func(context.Context, postprocess.Input) (*postprocess.Output, error) {
		return nil, cause
	}))

	_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessFailed))
	assert.True(t, errors.Is(err, cause))
}

func TestRunPostProcessEmptyOutput(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	b.PostProcess = true
	b.Strict = false
	b.WithProcessors(postprocess.ProcessorFunc(func(context.Context, postprocess.Input) (*postprocess.Output, error) {
		return &postprocess.Output{CSS: " \n"}, nil
	}))

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)
	assert.Equal(t, 0, stats.Processed)
	_, ok := fs.Content("/dist/a.css")
	assert.False(t, ok)

	require.Len(t, stats.Failed(), 1)
	errs := stats.Failed()[0].Errors()
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrProcessFailed))
	assert.True(t, errors.Is(errs[0], ErrEmptyOutput))
}

func TestRunPostProcessDisabled(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	b := newTestBuilder(fs, &fakeCompiler{})
	called := false
	b.WithProcessors(postprocess.ProcessorFunc(func(_ context.Context, in postprocess.Input) (*postprocess.Output, error) {
		called = true
		return &postprocess.Output{CSS: in.CSS}, nil
	}))

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, stats.Processed)
}

func TestRunBeforeWriteVeto(t *testing.T) {
	fs := threeFileFS()
	rec := newCountingRecorder()
	b := newTestBuilder(fs, &fakeCompiler{}).WithRecorder(rec)

	var after int
	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{
		BeforeWrite: func(r *Record, _ *Stats, _ *Builder) bool {
			css, ok := r.CSS()
			return ok && !strings.Contains(css, "b.scss")
		},
		AfterFile: func(*Record, *Stats, *Builder) { after++ },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Rendered)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 3, after)
	_, ok := fs.Content("/dist/b.css")
	assert.False(t, ok)
	require.Len(t, stats.Skipped(), 1)
	assert.Equal(t, "./b.css", stats.Skipped()[0].Output.Rel)
	assert.Empty(t, stats.Failed())
	assert.Equal(t, 1, rec.results[metrics.ResultSkipped])
	assert.Equal(t, 2, rec.results[metrics.ResultWritten])
	assert.Equal(t, 1, rec.outcomes[metrics.RunOutcomeSuccess])
}

func TestRunNothingWrittenIsNotAnError(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	rec := newCountingRecorder()
	b := newTestBuilder(fs, &fakeCompiler{}).WithRecorder(rec)

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{
		BeforeWrite: func(*Record, *Stats, *Builder) bool { return false },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)
	assert.Equal(t, 1, rec.outcomes[metrics.RunOutcomeEmpty])
}

func TestRunWriteFailure(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	fs.FailWrite("/dist/a.css", errors.New("disk full"))
	b := newTestBuilder(fs, &fakeCompiler{})

	_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWriteFailed))
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryFileSystem))
}

func TestRunResolutionFailureIsFatalInLooseMode(t *testing.T) {
	b := newTestBuilder(storage.NewMemFileSystem(), &fakeCompiler{})
	b.Strict = false

	stats, err := b.Run(context.Background(), "/missing", "/dist", RunOptions{})
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.True(t, errors.Is(err, ErrSourceNotFound))
	assert.True(t, dberrors.HasSeverity(err, dberrors.SeverityFatal))
}

func TestRunRefusesToOverwriteSource(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/styles/main.css", "body{color:red}")
	comp := &cssCompiler{}
	b := newTestBuilder(fs, comp)

	_, err := b.Run(context.Background(), "/styles", "/styles", RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutputIsSource))
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryFileSystem))

	b.Strict = false
	stats, err := b.Run(context.Background(), "/styles", "/styles", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)
	require.Len(t, stats.Skipped(), 1)
	require.Len(t, stats.Failed(), 1)

	css, _ := fs.Content("/styles/main.css")
	assert.Equal(t, "body{color:red}", css)
	assert.Empty(t, comp.files())
}

func TestRunSkipsEarlierMinifiedOutputs(t *testing.T) {
	fs := storage.NewMemFileSystem().
		AddFile("/styles/main.css", "body{}").
		AddFile("/styles/main.min.css", "old")
	comp := &cssCompiler{}
	b := newTestBuilder(fs, comp)
	b.Options.OutputStyle = compiler.StyleCompressed

	stats, err := b.Run(context.Background(), "/styles", "/styles", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, []string{"/styles/main.css"}, comp.files())
	css, _ := fs.Content("/styles/main.min.css")
	assert.Contains(t, css, "/* /styles/main.css */")

	// Minified files outside the target are ordinary sources.
	comp = &cssCompiler{}
	b = newTestBuilder(fs, comp)
	b.Options.OutputStyle = compiler.StyleCompressed
	stats, err = b.Run(context.Background(), "/styles", "/dist", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sources)
}

func TestRunSkipsNestedTarget(t *testing.T) {
	fs := storage.NewMemFileSystem().
		AddFile("/styles/main.css", "body{}").
		AddFile("/styles/out/main.css", "old")
	comp := &cssCompiler{}
	b := newTestBuilder(fs, comp)

	stats, err := b.Run(context.Background(), "/styles", "/styles/out", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, []string{"/styles/main.css"}, comp.files())
	assert.Equal(t, 1, stats.Written)
}

func TestRunOnlyOutputsIsEmptySource(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/styles/main.min.css", "old")
	b := newTestBuilder(fs, &cssCompiler{})

	_, err := b.Run(context.Background(), "/styles", "/styles", RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceEmpty))
}

func TestRunCanceled(t *testing.T) {
	fs := threeFileFS()
	comp := &fakeCompiler{}
	rec := newCountingRecorder()
	b := newTestBuilder(fs, comp).WithRecorder(rec)
	b.Strict = false

	ctx, cancel := context.WithCancel(context.Background())
	stats, err := b.Run(ctx, "/src", "/dist", RunOptions{
		AfterFile: func(*Record, *Stats, *Builder) { cancel() },
	})
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"/src/a.scss"}, comp.files())
	assert.Equal(t, 1, rec.outcomes[metrics.RunOutcomeCanceled])
}

func TestRunLoadsOptionsAndExtensions(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	loader := &fakeLoader{loaded: &config.Loaded{
		Path:    "/src/.stylebuild.json",
		Options: map[string]any{"brand": map[string]any{"options": map[string]any{"color": "blue"}}},
	}}

	var gotOptions map[string]any
	var gotRoot string
	resolver := plugin.NewBuiltinResolver().Register("brand", plugin.Factory(func(options map[string]any, host plugin.Host) error {
		gotOptions = options
		gotRoot, _ = host.SourceRoot()
		host.CompilerOptions().LoadPaths = append(host.CompilerOptions().LoadPaths, "/brand")
		return nil
	}))

	b := newTestBuilder(fs, &fakeCompiler{}).
		WithOptionsLoader(loader).
		WithRegistry(plugin.NewRegistry(resolver))
	b.WorkingDir = "/work"

	stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{Extensions: []string{"brand"}})
	require.NoError(t, err)

	assert.Equal(t, "/src/.stylebuild.json", stats.OptionsFile)
	assert.Equal(t, []string{"brand"}, stats.Extensions)
	assert.Equal(t, map[string]any{"color": "blue"}, gotOptions)
	assert.Equal(t, "/src", gotRoot)
	assert.Equal(t, []string{"/brand"}, b.Options.LoadPaths)
	assert.Equal(t, config.Discovery{WorkingDir: "/work", SourceRoot: "/src"}, loader.discovery)

	// A second run does not load the extension again.
	_, err = b.Run(context.Background(), "/src", "/dist", RunOptions{Extensions: []string{"brand"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"/brand"}, b.Options.LoadPaths)
}

func TestRunDuplicateExtensionInList(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	newResolver := func(calls *int) plugin.Resolver {
		return plugin.NewBuiltinResolver().Register("brand", plugin.Factory(func(map[string]any, plugin.Host) error {
			*calls++
			return nil
		}))
	}

	t.Run("strict aborts", func(t *testing.T) {
		calls := 0
		b := newTestBuilder(fs, &fakeCompiler{}).WithRegistry(plugin.NewRegistry(newResolver(&calls)))
		_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{Extensions: []string{"brand", "brand"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, plugin.ErrAlreadyLoaded))
		assert.Equal(t, 1, calls)
	})

	t.Run("loose continues", func(t *testing.T) {
		calls := 0
		b := newTestBuilder(fs, &fakeCompiler{}).WithRegistry(plugin.NewRegistry(newResolver(&calls)))
		b.Strict = false
		stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{Extensions: []string{"brand", "brand"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"brand"}, stats.Extensions)
		assert.Equal(t, 1, calls)
	})
}

func TestRunExtensionFailures(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")

	t.Run("strict aborts", func(t *testing.T) {
		b := newTestBuilder(fs, &fakeCompiler{})
		_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{Extensions: []string{"missing"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, plugin.ErrExtensionNotFound))
	})

	t.Run("loose continues", func(t *testing.T) {
		b := newTestBuilder(fs, &fakeCompiler{})
		b.Strict = false
		stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{Extensions: []string{"missing"}})
		require.NoError(t, err)
		assert.Empty(t, stats.Extensions)
		assert.Equal(t, 1, stats.Written)
	})
}

func TestRunOptionsFileFailure(t *testing.T) {
	fs := storage.NewMemFileSystem().AddFile("/src/a.scss", "")
	cause := errors.New("yaml: line 1: did not find expected node content")

	t.Run("strict aborts", func(t *testing.T) {
		b := newTestBuilder(fs, &fakeCompiler{}).WithOptionsLoader(&fakeLoader{err: cause})
		_, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, dberrors.HasCategory(err, dberrors.CategoryConfig))
	})

	t.Run("loose continues", func(t *testing.T) {
		b := newTestBuilder(fs, &fakeCompiler{}).WithOptionsLoader(&fakeLoader{err: cause})
		b.Strict = false
		stats, err := b.Run(context.Background(), "/src", "/dist", RunOptions{})
		require.NoError(t, err)
		assert.Empty(t, stats.OptionsFile)
	})
}

func TestLoadExtensionTwice(t *testing.T) {
	calls := 0
	resolver := plugin.NewBuiltinResolver().Register("once", plugin.Factory(func(map[string]any, plugin.Host) error {
		calls++
		return nil
	}))
	b := newTestBuilder(storage.NewMemFileSystem(), &fakeCompiler{}).WithRegistry(plugin.NewRegistry(resolver))

	require.NoError(t, b.LoadExtension("once", nil))
	err := b.LoadExtension("once", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, plugin.ErrAlreadyLoaded))
	assert.Equal(t, 1, calls)
}

func TestFailPolicy(t *testing.T) {
	err := errors.New("boom")

	strict := newTestBuilder(storage.NewMemFileSystem(), &fakeCompiler{})
	assert.Same(t, err, strict.Fail(err, false))
	assert.NoError(t, strict.Fail(nil, true))

	loose := newTestBuilder(storage.NewMemFileSystem(), &fakeCompiler{})
	loose.Strict = false
	assert.NoError(t, loose.Fail(err, false))
	assert.Same(t, err, loose.Fail(err, true))
}

func TestHostCaches(t *testing.T) {
	b := newTestBuilder(storage.NewMemFileSystem(), &fakeCompiler{})
	b.Cache("base64").Set("k", "v")
	v, ok := b.Cache("base64").Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.NotNil(t, b.Logger(), "a silent builder still hands out a usable logger")
}
