package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrSassNotInstalled is returned when the dart-sass binary cannot be found.
var ErrSassNotInstalled = errors.New("sass binary not found in PATH")

const defaultSassTemplate = `$environment: {{quote .Environment}};
$production: {{.Production}};
{{.Prepend}}
@import {{quote .Import}};
`

var sourceMappingURL = regexp.MustCompile(`\n?/\*# sourceMappingURL=[^*]*\*/\s*$`)

// runFunc executes binary with args and stdin, returning stdout.
type runFunc func(ctx context.Context, binary string, args []string, stdin string) ([]byte, error)

// SassCompiler runs the dart-sass command line compiler.
type SassCompiler struct {
	Binary string
	run    runFunc
}

// NewSassCompiler creates a compiler running binary (default "sass").
func NewSassCompiler(binary string) *SassCompiler {
	if binary == "" {
		binary = "sass"
	}
	return &SassCompiler{Binary: binary, run: runCommand}
}

func (*SassCompiler) Extensions() []string { return DefaultExtensions }

func (*SassCompiler) RootTemplate() string { return defaultSassTemplate }

// Available reports whether the binary can be found.
func (c *SassCompiler) Available() error {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return fmt.Errorf("%w: %s", ErrSassNotInstalled, c.Binary)
	}
	return nil
}

// Compile feeds the root template to sass on stdin. A source map is always
// generated so included files can be read from its sources list; it is only
// returned when requested.
func (c *SassCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	tmp, err := os.MkdirTemp("", "stylebuild-sass-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	outfile := filepath.Join(tmp, strings.TrimSuffix(filepath.Base(req.File), filepath.Ext(req.File))+".css")
	if _, err := c.run(ctx, c.Binary, c.args(req, outfile), req.Template); err != nil {
		return nil, err
	}

	// #nosec G304 -- outfile lives in our own temp dir
	css, err := os.ReadFile(outfile)
	if err != nil {
		return nil, fmt.Errorf("read sass output: %w", err)
	}
	// #nosec G304 -- outfile lives in our own temp dir
	sourceMap, err := os.ReadFile(outfile + ".map")
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read sass source map: %w", err)
	}

	out := &Result{
		CSS:           sourceMappingURL.ReplaceAllString(string(css), "\n"),
		IncludedFiles: mapSources(sourceMap),
	}
	if req.Options.SourceMap {
		out.SourceMap = string(sourceMap)
	}
	if req.Options.HostFunctions {
		expanded, err := ExpandFunctions(ctx, out.CSS, req.Options.Functions)
		if err != nil {
			return nil, err
		}
		out.CSS = expanded
	}
	return out, nil
}

func (c *SassCompiler) args(req Request, outfile string) []string {
	style := req.Options.OutputStyle
	if style == "" {
		style = StyleExpanded
	}
	args := []string{"--stdin", "--no-error-css", "--style=" + string(style), "--source-map"}
	for _, p := range req.Options.LoadPaths {
		args = append(args, "--load-path="+p)
	}
	return append(args, outfile)
}

// mapSources extracts local file paths from a source map's sources list.
func mapSources(sourceMap []byte) []string {
	if len(sourceMap) == 0 {
		return nil
	}
	var m struct {
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal(sourceMap, &m); err != nil {
		return nil
	}
	var files []string
	for _, src := range m.Sources {
		u, err := url.Parse(src)
		if err != nil || u.Scheme != "file" {
			continue
		}
		files = append(files, filepath.FromSlash(u.Path))
	}
	return files
}

func runCommand(ctx context.Context, binary string, args []string, stdin string) ([]byte, error) {
	// #nosec G204 -- binary is configured by the operator, args are built here
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("sass failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("sass failed: %w", err)
	}
	return out, nil
}
