// Package commands implements the stylebuild command line.
package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/stylebuild/internal/plugin/inline"
	"git.home.luguber.info/inful/stylebuild/internal/report"
)

// CLI is the stylebuild command line. With a single path argument the target
// is the source itself.
type CLI struct {
	Source string `arg:"" optional:"" help:"Source file or directory (default: working directory)"`
	Target string `arg:"" optional:"" help:"Target directory (default: source)"`

	Version       kong.VersionFlag `short:"v" help:"Show version and exit"`
	Stats         bool             `short:"s" help:"Show build statistics"`
	Verbose       bool             `short:"i" help:"Show per-file output and full error chains"`
	Compressed    bool             `short:"c" help:"Minify the output (.min.css)"`
	WithMap       bool             `short:"m" name:"with-map" help:"Write source maps next to the output"`
	NoPostprocess bool             `short:"p" name:"no-postprocess" help:"Skip the post-process stage"`
	Production    bool             `help:"Build with the production environment"`
	Development   bool             `help:"Build with the development environment"`
	Env           string           `help:"Environment name exposed to stylesheets" env:"STYLEBUILD_ENV"`
	Options       string           `short:"o" help:"Directory containing the options file" env:"STYLEBUILD_OPTIONS"`
	NoOptions     bool             `name:"no-options" help:"Do not look for an options file"`
	Extensions    string           `short:"e" help:"Comma separated extensions to load, or 'all'" env:"STYLEBUILD_EXTENSIONS"`
	Colors        string           `short:"w" help:"Output size color limits as three ascending KiB values (default 100,200,300)"`
	Loose         bool             `short:"u" help:"Log per-file errors and continue instead of aborting"`
	DeployConfig  bool             `name:"deploy-config" help:"Write a default options file and exit"`

	Compiler    string `default:"sass" enum:"sass,esbuild" help:"Compiler backend (sass compiles .scss and .sass, esbuild bundles plain .css)"`
	SassBinary  string `name:"sass-binary" default:"sass" env:"STYLEBUILD_SASS" help:"dart-sass executable"`
	Targets     string `help:"Comma separated browser targets for post-processing (e.g. chrome80,safari13)"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics in text format to this file"`
	Report      string `help:"Write a run report (.json or .yaml)"`
	NoColor     bool   `name:"no-color" env:"NO_COLOR" help:"Disable colored output"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// Paths returns the source and target of the run.
func (c *CLI) Paths() (string, string) {
	source := c.Source
	if source == "" {
		source = "."
	}
	target := c.Target
	if target == "" {
		target = source
	}
	return source, target
}

// Environment resolves the environment name. The shortcuts win over --env.
func (c *CLI) Environment() string {
	switch {
	case c.Production:
		return "production"
	case c.Development:
		return "development"
	default:
		return c.Env
	}
}

// ExtensionList splits the extensions flag. "all" and "true" select every
// built-in extension.
func (c *CLI) ExtensionList() []string {
	switch strings.ToLower(strings.TrimSpace(c.Extensions)) {
	case "", "false":
		return nil
	case "all", "true":
		return builtinNames()
	}
	var out []string
	for _, part := range strings.Split(c.Extensions, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func builtinNames() []string {
	return []string{inline.Name}
}

// ColorLimits parses the colors flag. Invalid input falls back to the
// defaults; the second result is a notice for the user in that case.
func (c *CLI) ColorLimits() (report.ColorLimits, string) {
	if strings.TrimSpace(c.Colors) == "" {
		return report.DefaultColorLimits, ""
	}
	limits, err := report.ParseColorLimits(c.Colors)
	if err != nil {
		return report.DefaultColorLimits, "Using default coloring, -w or --colors must contain 3 incrementing kib limit integers"
	}
	return limits, ""
}

// BrowserTargets returns the post-process targets.
func (c *CLI) BrowserTargets() []string {
	if strings.TrimSpace(c.Targets) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(c.Targets, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *CLI) optionsDir() string {
	if c.Options == "" {
		return ""
	}
	abs, err := filepath.Abs(c.Options)
	if err != nil {
		return c.Options
	}
	return abs
}
