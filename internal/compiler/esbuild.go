package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// externalAssets are url() references esbuild leaves untouched instead of
// trying to load them.
var externalAssets = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.avif", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot",
}

// stdinName names the root template module. It must differ from every real
// file or the template's import of the source resolves to itself.
const stdinName = "<root>.css"

// EsbuildCompiler bundles plain CSS sources in-process. Plain CSS has no
// variables, so the environment fields of the root template are unused, and
// the prepend snippet follows the import because @import must come first.
type EsbuildCompiler struct{}

// NewEsbuildCompiler creates the esbuild-backed compiler.
func NewEsbuildCompiler() *EsbuildCompiler {
	return &EsbuildCompiler{}
}

func (*EsbuildCompiler) Extensions() []string { return []string{".css"} }

func (*EsbuildCompiler) RootTemplate() string {
	return "@import {{quote .Import}};\n{{.Prepend}}\n"
}

// Compile bundles the root template, resolving imports relative to req.File.
func (*EsbuildCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(req.File)
	outfile := strings.TrimSuffix(req.File, filepath.Ext(req.File)) + ".css"

	buildOpts := api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   req.Template,
			ResolveDir: dir,
			Sourcefile: stdinName,
			Loader:     api.LoaderCSS,
		},
		AbsWorkingDir:  dir,
		Bundle:         true,
		Write:          false,
		Outfile:        outfile,
		AllowOverwrite: true,
		Metafile:       true,
		NodePaths:      req.Options.LoadPaths,
		External:       externalAssets,
		Sourcemap:      api.SourceMapNone,
		LogLevel:       api.LogLevelSilent,
	}
	if req.Options.SourceMap {
		buildOpts.Sourcemap = api.SourceMapExternal
	}
	if req.Options.Compressed() {
		buildOpts.MinifyWhitespace = true
		buildOpts.MinifySyntax = true
	}

	result := api.Build(buildOpts)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("esbuild errors:\n%s", formatMessages(result.Errors))
	}

	out := &Result{}
	for _, file := range result.OutputFiles {
		switch {
		case strings.HasSuffix(file.Path, ".map"):
			out.SourceMap = string(file.Contents)
		case strings.HasSuffix(file.Path, ".css"):
			out.CSS = string(file.Contents)
		}
	}
	out.IncludedFiles = metafileInputs(result.Metafile, dir)

	if req.Options.HostFunctions {
		css, err := ExpandFunctions(ctx, out.CSS, req.Options.Functions)
		if err != nil {
			return nil, err
		}
		out.CSS = css
	}
	return out, nil
}

// metafileInputs lists the bundled files, excluding the root template.
func metafileInputs(metafile, dir string) []string {
	if metafile == "" {
		return nil
	}
	var meta struct {
		Inputs map[string]json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil
	}
	files := make([]string, 0, len(meta.Inputs))
	for path := range meta.Inputs {
		if strings.HasPrefix(path, "<") || filepath.Base(path) == stdinName {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

func formatMessages(msgs []api.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		if msg.Location != nil {
			fmt.Fprintf(&b, "%s:%d:%d: %s\n", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
			continue
		}
		b.WriteString(msg.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// QuoteCSS renders s as a double-quoted CSS string.
func QuoteCSS(s string) string {
	return strconv.Quote(filepath.ToSlash(s))
}
