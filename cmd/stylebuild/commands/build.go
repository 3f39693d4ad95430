package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/stylebuild/internal/build"
	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/config"
	"git.home.luguber.info/inful/stylebuild/internal/metrics"
	"git.home.luguber.info/inful/stylebuild/internal/plugin"
	"git.home.luguber.info/inful/stylebuild/internal/plugin/inline"
	"git.home.luguber.info/inful/stylebuild/internal/plugin/script"
	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
	"git.home.luguber.info/inful/stylebuild/internal/report"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// Execute runs the command, writing user-facing output to out.
func (c *CLI) Execute(ctx context.Context, out io.Writer) error {
	if c.DeployConfig {
		return c.deployConfig(out)
	}

	r := report.NewRenderer(out, c.NoColor)
	r.Details = c.Stats
	limits, notice := c.ColorLimits()
	r.Limits = limits
	if notice != "" && c.Verbose {
		r.Notice(notice)
	}

	b, err := c.newBuilder()
	if err != nil {
		return err
	}

	var recorder *metrics.PrometheusRecorder
	if c.MetricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		b.WithRecorder(recorder)
	}

	if b.Strict && b.Verbose {
		r.Warn("Running in strict mode!")
	}

	source, target := c.Paths()
	started := time.Now()
	stats, runErr := b.Run(ctx, source, target, build.RunOptions{
		Extensions: c.ExtensionList(),
		AfterFile: func(rec *build.Record, _ *build.Stats, _ *build.Builder) {
			if c.Verbose {
				r.File(rec)
			}
		},
	})

	if recorder != nil {
		if err := recorder.WriteTextfile(c.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics file", "path", c.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	r.Summary(stats, time.Since(started))
	if c.Stats {
		r.Overview(stats, !c.Verbose)
	}
	if c.Report != "" {
		if err := stats.Persist(storage.NewOSFileSystem(), c.Report); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLI) newBuilder() (*build.Builder, error) {
	comp, err := c.newCompiler()
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	fs := storage.NewOSFileSystem()

	builtins := plugin.NewBuiltinResolver()
	inline.Register(builtins)
	scriptDir := wd
	if dir := c.optionsDir(); dir != "" {
		scriptDir = dir
	}
	resolver := plugin.ChainResolver{builtins, script.NewResolver(fs, scriptDir)}

	b := build.NewBuilder(comp).
		WithFileSystem(fs).
		WithLogger(slog.Default()).
		WithRegistry(plugin.NewRegistry(resolver)).
		WithOptionsLoader(config.NewLoader(config.Defaults()))

	b.Strict = !c.Loose
	b.Verbose = c.Verbose
	b.Environment = c.Environment()
	b.Options.SourceMap = c.WithMap
	if c.Compressed {
		b.Options.OutputStyle = compiler.StyleCompressed
	}
	b.OptionsDir = c.optionsDir()
	b.NoOptions = c.NoOptions
	b.WorkingDir = wd

	if !c.NoPostprocess {
		p, err := postprocess.NewEsbuildProcessor(c.BrowserTargets(), c.Compressed, c.WithMap)
		if err != nil {
			return nil, err
		}
		b.PostProcess = true
		b.WithProcessors(p)
	}
	return b, nil
}

func (c *CLI) newCompiler() (compiler.Compiler, error) {
	switch c.Compiler {
	case "sass":
		sass := compiler.NewSassCompiler(c.SassBinary)
		if err := sass.Available(); err != nil {
			return nil, err
		}
		return sass, nil
	default:
		return compiler.NewEsbuildCompiler(), nil
	}
}

func (c *CLI) deployConfig(out io.Writer) error {
	dir := c.optionsDir()
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		dir = wd
	}
	path, err := config.Deploy(dir, false)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Wrote options file to %s\n", path)
	return nil
}
