package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/stylebuild/internal/build"
	"git.home.luguber.info/inful/stylebuild/internal/version"
)

// Renderer writes build output for humans.
type Renderer struct {
	out     io.Writer
	styles  Styles
	printer *message.Printer

	// Limits color the output size in detailed file lines.
	Limits ColorLimits

	// Details adds include count, output size and time to file lines.
	Details bool
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	return &Renderer{
		out:     out,
		styles:  NewStyles(newLipglossRenderer(out, noColor)),
		printer: message.NewPrinter(language.English),
		Limits:  DefaultColorLimits,
	}
}

// Styles returns the renderer styles.
func (r *Renderer) Styles() Styles { return r.styles }

// Println writes a line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Warn writes a warning line.
func (r *Renderer) Warn(msg string) {
	r.Println(r.styles.Warning.Render(msg))
}

// Notice writes an informational line.
func (r *Renderer) Notice(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// FileLine describes one file: "- ./in.scss > ./out.css (.map)", a bracket
// with includes, size and time instead of ">" when Details is set, or
// "Skipped" when nothing was written.
func (r *Renderer) FileLine(rec *build.Record) string {
	parts := []string{"-", r.styles.Path.Render(rec.Input.Rel)}
	if rec.Skipped {
		parts = append(parts, r.styles.Error.Render("Skipped"))
		return strings.Join(parts, " ")
	}

	if r.Details {
		parts = append(parts, r.styles.Accent.Render("["))
		if rec.Stats.Rendered != nil {
			parts = append(parts, "Includes:", r.styles.Number.Render(fmt.Sprintf("%3d", len(rec.Stats.Rendered.IncludedFiles))))
		}
		parts = append(parts, "Output:", r.sizeStyle(rec.Size).Render(fmt.Sprintf("%10s", humanize.IBytes(uint64(rec.Size)))))
		parts = append(parts, "in", r.styles.Number.Render(FormatDuration(rec.Timings.Total.Duration())))
		parts = append(parts, r.styles.Accent.Render("]"))
	} else {
		parts = append(parts, r.styles.Accent.Render(">"))
	}

	parts = append(parts, r.styles.Path.Render(rec.Output.Rel))
	if rec.MapWritten {
		parts = append(parts, r.styles.Accent.Render("(")+r.styles.Number.Render(".map")+r.styles.Accent.Render(")"))
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) sizeStyle(size int64) lipgloss.Style {
	switch r.Limits.Classify(size) {
	case SizeSmall:
		return r.styles.Success
	case SizeMedium:
		return r.styles.Notice
	case SizeTooLarge:
		return r.styles.Error
	default:
		return r.styles.Plain
	}
}

// File writes the line for rec.
func (r *Renderer) File(rec *build.Record) {
	r.Println(r.FileLine(rec))
}

// Summary writes the closing line of a run. Writing nothing is reported as a
// warning, finding nothing as an error.
func (r *Renderer) Summary(stats *build.Stats, elapsed time.Duration) {
	switch {
	case stats.Written > 0:
		noun := "files"
		if stats.Written == 1 {
			noun = "file"
		}
		r.Println(r.styles.Success.Render(r.printer.Sprintf("%s wrote [ %d ] %s in %s",
			version.Name, stats.Written, noun, FormatDuration(elapsed))))
	case stats.Sources > 0:
		r.Warn(version.Name + " did not write any files!")
	default:
		r.Println(r.styles.Error.Render(version.Name + " did not find any files!"))
	}
}

// Overview writes the stats table. Counters equal to Sources are left out;
// file lines are included when withFiles is set.
func (r *Renderer) Overview(stats *build.Stats, withFiles bool) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(r.styles.Header.Render("Overview"))

	t.AppendRow(table.Row{"Sources", r.printer.Sprintf("%d", stats.Sources)})
	for _, row := range []struct {
		label string
		value int
	}{
		{"Rendered", stats.Rendered},
		{"Processed", stats.Processed},
		{"Wrote", stats.Written},
	} {
		if row.value != stats.Sources {
			t.AppendRow(table.Row{row.label, r.printer.Sprintf("%d", row.value)})
		}
	}
	if stats.Maps > 0 {
		if stats.Maps != stats.Sources {
			t.AppendRow(table.Row{"Maps", r.printer.Sprintf("%d", stats.Maps)})
		} else {
			t.AppendRow(table.Row{"Maps", "with map" + plural(stats.Maps)})
		}
	}
	if stats.OptionsFile != "" {
		t.AppendRow(table.Row{"Options", stats.OptionsFile})
	}
	if len(stats.Extensions) > 0 {
		t.AppendRow(table.Row{"Extensions", strings.Join(stats.Extensions, ", ")})
	}
	t.AppendRow(table.Row{"Time", FormatDuration(stats.Duration)})
	t.Render()

	if !withFiles || len(stats.Files) == 0 {
		return
	}
	r.Println(r.styles.Header.Render("Render and processing details"))
	for _, rec := range stats.Files {
		r.File(rec)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// FormatDuration renders d rounded for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
