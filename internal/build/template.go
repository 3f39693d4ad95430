package build

import (
	"bytes"
	"fmt"
	"text/template"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
)

// DefaultRootTemplate is used when the compiler does not supply its own. It
// exposes the environment to Sass and imports the file being built.
const DefaultRootTemplate = `$environment: {{quote .Environment}};
$production: {{.Production}};
{{.Prepend}}
@import {{quote .Import}};
`

// TemplateData is the data the root template is rendered with.
type TemplateData struct {
	Environment string
	Production  bool
	Import      string
	Prepend     string
}

var templateFuncs = template.FuncMap{
	"quote": compiler.QuoteCSS,
}

// ParseRootTemplate parses a root template. The quote function renders a
// string as a CSS string literal.
func ParseRootTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("root").Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse root template: %w", err)
	}
	return tmpl, nil
}

// RenderRootTemplate executes tmpl with data.
func RenderRootTemplate(tmpl *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render root template: %w", err)
	}
	return buf.String(), nil
}

func rootTemplateText(c compiler.Compiler) string {
	if p, ok := c.(compiler.TemplateProvider); ok {
		if text := p.RootTemplate(); text != "" {
			return text
		}
	}
	return DefaultRootTemplate
}
