package postprocess

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/evanw/esbuild/pkg/api"
)

// DefaultTargets are the browser targets used when none are configured.
var DefaultTargets = []string{"chrome80", "firefox78", "safari13", "edge80"}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// EsbuildProcessor lowers and vendor-prefixes CSS for the configured browser
// targets, optionally minifying it.
type EsbuildProcessor struct {
	engines   []api.Engine
	Minify    bool
	SourceMap bool
}

// NewEsbuildProcessor parses targets such as "chrome58" or "safari13.1".
func NewEsbuildProcessor(targets []string, minify, sourceMap bool) (*EsbuildProcessor, error) {
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	engines := make([]api.Engine, 0, len(targets))
	for _, target := range targets {
		engine, err := ParseTarget(target)
		if err != nil {
			return nil, err
		}
		engines = append(engines, engine)
	}
	return &EsbuildProcessor{engines: engines, Minify: minify, SourceMap: sourceMap}, nil
}

// ParseTarget splits a browser target into engine name and version.
func ParseTarget(target string) (api.Engine, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	idx := strings.IndexFunc(target, unicode.IsDigit)
	if idx <= 0 {
		return api.Engine{}, fmt.Errorf("invalid browser target %q", target)
	}
	name, ok := engineNames[target[:idx]]
	if !ok {
		return api.Engine{}, fmt.Errorf("unknown browser %q in target %q", target[:idx], target)
	}
	return api.Engine{Name: name, Version: target[idx:]}, nil
}

// Process transforms in.CSS. A previous map is passed to esbuild as an inline
// source map comment so the output map points at the original sources.
func (p *EsbuildProcessor) Process(ctx context.Context, in Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code := in.CSS
	if in.PrevMap != "" {
		code += "\n/*# sourceMappingURL=data:application/json;base64," +
			base64.StdEncoding.EncodeToString([]byte(in.PrevMap)) + " */\n"
	}

	opts := api.TransformOptions{
		Loader:     api.LoaderCSS,
		Sourcefile: filepath.Base(in.From),
		Engines:    p.engines,
		LogLevel:   api.LogLevelSilent,
		Sourcemap:  api.SourceMapNone,
	}
	if p.SourceMap {
		opts.Sourcemap = api.SourceMapExternal
	}
	if p.Minify {
		opts.MinifyWhitespace = true
		opts.MinifySyntax = true
	}

	result := api.Transform(code, opts)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("esbuild transform errors:\n%s", formatMessages(result.Errors))
	}

	out := &Output{CSS: string(result.Code), Map: string(result.Map)}
	for _, w := range result.Warnings {
		out.Messages = append(out.Messages, formatMessage(w))
	}
	return out, nil
}

func formatMessages(msgs []api.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(formatMessage(msg))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatMessage(msg api.Message) string {
	if msg.Location != nil {
		return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
	}
	return msg.Text
}
