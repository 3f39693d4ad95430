package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/config"
	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/logfields"
	"git.home.luguber.info/inful/stylebuild/internal/metrics"
	"git.home.luguber.info/inful/stylebuild/internal/observability"
	"git.home.luguber.info/inful/stylebuild/internal/plugin"
	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
)

// RunOptions are the per-run callbacks and extensions.
type RunOptions struct {
	// BeforeWrite is called after the last content stage. Returning false
	// vetoes the write and the file is reported as skipped.
	BeforeWrite func(rec *Record, stats *Stats, b *Builder) bool

	// AfterFile is called once per file that did not abort the run, after
	// timings are final and before the record's content is released.
	AfterFile func(rec *Record, stats *Stats, b *Builder)

	// Extensions are loaded in order before the first file is built.
	Extensions []string
}

// Run builds every style file of source into target. Resolution failures and
// cancellation always abort; other failures go through Fail. An aborted run
// returns nil stats.
func (b *Builder) Run(ctx context.Context, source, target string, opts RunOptions) (*Stats, error) {
	started := time.Now()
	stats := &Stats{RunID: uuid.NewString(), StartedAt: started}
	ctx = observability.WithRunID(ctx, stats.RunID)
	defer b.setCurrent(nil)

	if err := b.resolve(ctx, source, target, stats); err != nil {
		return b.abort(started, err)
	}
	if err := b.loadOptions(ctx, stats); err != nil {
		return b.abort(started, err)
	}
	if err := b.loadExtensions(ctx, opts.Extensions, stats); err != nil {
		return b.abort(started, err)
	}

	for _, file := range stats.Source.Files {
		if err := ctx.Err(); err != nil {
			return b.abort(started, dberrors.WrapError(err, dberrors.CategoryRuntime, "run canceled").
				WithContext("file", file).Build())
		}
		if err := b.buildFile(ctx, file, stats, opts); err != nil {
			return b.abort(started, err)
		}
	}

	stats.Duration = time.Since(started)
	b.recorder.ObserveRunDuration(stats.Duration)
	if stats.Written == 0 {
		b.recorder.IncRunOutcome(metrics.RunOutcomeEmpty)
	} else {
		b.recorder.IncRunOutcome(metrics.RunOutcomeSuccess)
	}
	observability.DebugContext(ctx, b.logger, "run finished",
		logfields.Count(stats.Written), logfields.DurationMS(millis(stats.Duration)))
	return stats, nil
}

func (b *Builder) abort(started time.Time, err error) (*Stats, error) {
	b.recorder.ObserveRunDuration(time.Since(started))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		b.recorder.IncRunOutcome(metrics.RunOutcomeCanceled)
	} else {
		b.recorder.IncRunOutcome(metrics.RunOutcomeFailed)
	}
	return nil, err
}

func (b *Builder) setCurrent(r *run) {
	b.mu.Lock()
	b.current = r
	b.mu.Unlock()
}

func (b *Builder) resolve(ctx context.Context, source, target string, stats *Stats) error {
	src, err := ResolveSource(b.fs, source, compiler.ExtensionsFor(b.compiler))
	if err != nil {
		return b.Fail(err, true)
	}
	tgt, err := ResolveTarget(b.fs, target)
	if err != nil {
		return b.Fail(err, true)
	}
	if src.Root == src.Resolved {
		src.Files = b.excludeOutputs(src.Files, src.Root, tgt.Resolved)
		if len(src.Files) == 0 {
			return b.Fail(stageError(dberrors.CategoryValidation, ErrSourceEmpty,
				fmt.Errorf("only build outputs found under %s", tgt.Resolved), StageResolve, src.Resolved), true)
		}
	}

	stats.Source, stats.Target = src, tgt
	stats.Sources = len(src.Files)
	b.setCurrent(&run{source: src, target: tgt})

	observability.DebugContext(observability.WithStage(ctx, StageResolve), b.logger, "resolved",
		logfields.Path(src.Resolved), logfields.Target(tgt.Resolved), logfields.Count(len(src.Files)))
	return nil
}

// excludeOutputs drops files written by earlier runs: everything under a
// target nested in the source root, and minified outputs under a target that
// is the source root itself.
func (b *Builder) excludeOutputs(files []string, root, target string) []string {
	nested := filepath.Clean(target) != filepath.Clean(root)
	ext := b.OutputExt
	if ext == "" {
		ext = DefaultOutputExt
	}
	minified := b.MinifiedSuffix + ext
	kept := make([]string, 0, len(files))
	for _, file := range files {
		if within(target, file) && (nested || (b.MinifiedSuffix != "" && strings.HasSuffix(file, minified))) {
			continue
		}
		kept = append(kept, file)
	}
	return kept
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (b *Builder) loadOptions(ctx context.Context, stats *Stats) error {
	if b.optionsLoader == nil {
		return nil
	}
	discovery := config.Discovery{
		Dir:        b.OptionsDir,
		Disabled:   b.NoOptions,
		WorkingDir: b.workingDir(),
		SourceRoot: stats.Source.Root,
	}
	loaded, err := b.optionsLoader.Load(discovery)
	if err != nil {
		return b.Fail(dberrors.ConfigError("options file could not be loaded").
			WithCause(err).
			WithContext("stage", StageOptions).
			Build(), false)
	}
	if loaded == nil {
		return nil
	}

	b.registry.MergeOptions(loaded.Options)
	stats.OptionsFile = loaded.Path
	observability.DebugContext(observability.WithStage(ctx, StageOptions), b.logger, "options file loaded",
		logfields.Path(loaded.Path))
	return nil
}

func (b *Builder) workingDir() string {
	if b.WorkingDir != "" {
		return b.WorkingDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

// loadExtensions loads each spec. Names loaded by an earlier run are skipped;
// a name repeated within specs fails with plugin.ErrAlreadyLoaded.
func (b *Builder) loadExtensions(ctx context.Context, specs []string, stats *Stats) error {
	if len(specs) == 0 {
		return nil
	}
	ctx = observability.WithStage(ctx, StageLoad)
	start := time.Now()
	defer func() { b.recorder.ObserveStageDuration(StageLoad, time.Since(start)) }()

	earlier := make(map[string]bool)
	for _, name := range b.registry.Loaded() {
		earlier[name] = true
	}
	for _, raw := range specs {
		spec := plugin.ParseSpec(raw)
		if earlier[spec.Name] {
			observability.DebugContext(ctx, b.logger, "extension already loaded", logfields.Extension(spec.Name))
			continue
		}
		if err := b.registry.Load(raw, nil, b); err != nil {
			if err := b.Fail(err, false); err != nil {
				return err
			}
			continue
		}
		stats.Extensions = append(stats.Extensions, spec.Name)
		observability.DebugContext(ctx, b.logger, "extension loaded", logfields.Extension(spec.Name))
	}
	return nil
}

func (b *Builder) buildFile(ctx context.Context, file string, stats *Stats, opts RunOptions) error {
	rec := NewRecord(file, stats.Source.Root, stats.Target.Resolved, b.outputExt())
	rec.started = time.Now()
	stats.Files = append(stats.Files, rec)
	ctx = observability.WithFile(ctx, file)

	if filepath.Clean(rec.Output.Path) == filepath.Clean(rec.SourceFile) {
		return b.fileFailed(ctx, rec, stats, opts,
			stageError(dberrors.CategoryFileSystem, ErrOutputIsSource, nil, StageWrite, rec.SourceFile))
	}
	if err := b.render(ctx, rec, stats); err != nil {
		return b.fileFailed(ctx, rec, stats, opts, err)
	}
	if err := b.process(ctx, rec, stats); err != nil {
		return b.fileFailed(ctx, rec, stats, opts, err)
	}

	if opts.BeforeWrite != nil && !opts.BeforeWrite(rec, stats, b) {
		rec.Skipped = true
		b.recorder.IncFileResult(metrics.ResultSkipped)
		observability.DebugContext(ctx, b.logger, "write vetoed")
		b.finishFile(rec, stats, opts)
		return nil
	}

	if err := b.write(ctx, rec, stats); err != nil {
		return b.fileFailed(ctx, rec, stats, opts, err)
	}
	b.recorder.IncFileResult(metrics.ResultWritten)
	b.finishFile(rec, stats, opts)
	return nil
}

// fileFailed records err on rec and applies the error policy. A nil return
// means the run continues with the next file.
func (b *Builder) fileFailed(ctx context.Context, rec *Record, stats *Stats, opts RunOptions, err error) error {
	rec.AddError(err)
	rec.Skipped = !rec.written
	b.recorder.IncFileResult(metrics.ResultFailed)
	if err := b.Fail(err, false); err != nil {
		return err
	}
	observability.DebugContext(ctx, b.logger, "file failed, continuing", logfields.Error(err))
	b.finishFile(rec, stats, opts)
	return nil
}

func (b *Builder) finishFile(rec *Record, stats *Stats, opts RunOptions) {
	rec.Timings.Total.Set(time.Since(rec.started))
	if opts.AfterFile != nil {
		opts.AfterFile(rec, stats, b)
	}
	rec.ClearMemory()
}

func (b *Builder) render(ctx context.Context, rec *Record, stats *Stats) error {
	ctx = observability.WithStage(ctx, StageRender)
	start := time.Now()

	tmpl, err := b.rootTemplate()
	if err != nil {
		return stageError(dberrors.CategoryBuild, ErrRenderFailed, err, StageRender, rec.SourceFile)
	}
	root, err := RenderRootTemplate(tmpl, TemplateData{
		Environment: b.Environment,
		Production:  b.Production(),
		Import:      rec.SourceFile,
		Prepend:     b.Prepend,
	})
	if err != nil {
		return stageError(dberrors.CategoryBuild, ErrRenderFailed, err, StageRender, rec.SourceFile)
	}

	options := b.Options.Clone()
	options.LoadPaths = append([]string{rec.Input.Dir}, options.LoadPaths...)
	res, err := b.compiler.Compile(ctx, compiler.Request{Template: root, File: rec.SourceFile, Options: options})
	if err != nil {
		return stageError(dberrors.CategoryBuild, ErrRenderFailed, err, StageRender, rec.SourceFile)
	}
	if strings.TrimSpace(res.CSS) == "" {
		return stageError(dberrors.CategoryBuild, ErrRenderFailed, ErrEmptyOutput, StageRender, rec.SourceFile)
	}

	rec.AddCSS(res.CSS)
	if res.SourceMap != "" {
		rec.AddMap(res.SourceMap)
	}
	rec.Stats.Rendered = &RenderStats{IncludedFiles: res.IncludedFiles}

	d := time.Since(start)
	rec.Timings.Rendered.Set(d)
	stats.Rendered++
	b.recorder.ObserveStageDuration(StageRender, d)
	observability.DebugContext(ctx, b.logger, "rendered",
		logfields.Count(len(res.IncludedFiles)), logfields.DurationMS(millis(d)))
	return nil
}

func (b *Builder) process(ctx context.Context, rec *Record, stats *Stats) error {
	if !b.PostProcess || len(b.processors) == 0 {
		return nil
	}
	ctx = observability.WithStage(ctx, StageProcess)
	start := time.Now()

	css, _ := rec.CSS()
	prev, _ := rec.Map()
	out, err := b.processors.Process(ctx, postprocess.Input{
		CSS:     css,
		From:    rec.Input.Path,
		To:      rec.Output.Path,
		PrevMap: prev,
	})
	if err != nil {
		return stageError(dberrors.CategoryBuild, ErrProcessFailed, err, StageProcess, rec.SourceFile)
	}
	if strings.TrimSpace(out.CSS) == "" {
		return stageError(dberrors.CategoryBuild, ErrProcessFailed, ErrEmptyOutput, StageProcess, rec.SourceFile)
	}

	rec.AddCSS(out.CSS)
	if out.Map != "" {
		rec.AddMap(out.Map)
	}
	rec.setProcessStats(out)

	d := time.Since(start)
	rec.Timings.Processed.Set(d)
	stats.Processed++
	b.recorder.ObserveStageDuration(StageProcess, d)
	for _, msg := range out.Messages {
		observability.WarnContext(ctx, b.logger, msg)
	}
	observability.DebugContext(ctx, b.logger, "processed", logfields.DurationMS(millis(d)))
	return nil
}

func (b *Builder) write(ctx context.Context, rec *Record, stats *Stats) error {
	ctx = observability.WithStage(ctx, StageWrite)
	start := time.Now()

	css, _ := rec.CSS()
	m, hasMap := rec.Map()
	hasMap = hasMap && m != ""
	mapPath := rec.Output.Path + ".map"
	if hasMap {
		css = withMapURL(css, filepath.Base(mapPath))
	}
	if err := b.fs.WriteFile(rec.Output.Path, []byte(css)); err != nil {
		return stageError(dberrors.CategoryFileSystem, ErrWriteFailed, err, StageWrite, rec.Output.Path)
	}
	rec.written = true
	rec.Size = int64(len(css))
	stats.Written++

	if hasMap {
		if err := b.fs.WriteFile(mapPath, []byte(m)); err != nil {
			return stageError(dberrors.CategoryFileSystem, ErrWriteFailed, err, StageWrite, mapPath)
		}
		rec.MapWritten = true
		stats.Maps++
	}

	d := time.Since(start)
	rec.Timings.Written.Set(d)
	b.recorder.ObserveStageDuration(StageWrite, d)
	observability.DebugContext(ctx, b.logger, "written", logfields.Path(rec.Output.Path))
	return nil
}

// withMapURL appends the sourceMappingURL annotation pointing at name.
func withMapURL(css, name string) string {
	return strings.TrimRight(css, "\n") + "\n/*# sourceMappingURL=" + name + " */\n"
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
