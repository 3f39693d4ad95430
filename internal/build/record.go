package build

import (
	"time"

	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
)

// Timing is a duration that is either unset or measured.
type Timing struct {
	d   time.Duration
	set bool
}

// Set records d.
func (t *Timing) Set(d time.Duration) { t.d, t.set = d, true }

// Get returns the duration and whether it was set.
func (t Timing) Get() (time.Duration, bool) { return t.d, t.set }

// IsSet reports whether a duration was recorded.
func (t Timing) IsSet() bool { return t.set }

// Duration returns the recorded duration or zero.
func (t Timing) Duration() time.Duration { return t.d }

// Timings are the per-file stage durations.
type Timings struct {
	Total     Timing
	Rendered  Timing
	Processed Timing
	Written   Timing
}

// RenderStats are the diagnostics of the render stage.
type RenderStats struct {
	IncludedFiles []string
}

// ProcessStats are the diagnostics of the post-process stage.
type ProcessStats struct {
	Messages []string
}

// StageStats holds the stats of the stages that ran.
type StageStats struct {
	Rendered  *RenderStats
	Processed *ProcessStats
}

// Record is the per-file state of a run.
type Record struct {
	SourceFile string
	Input      PathData
	Output     PathData
	Timings    Timings
	Stats      StageStats

	// Skipped is set when the CSS was not written.
	Skipped bool

	// MapWritten is set when a source map was written next to the CSS.
	MapWritten bool

	// Size is the number of CSS bytes written.
	Size int64

	cssHistory []string
	mapHistory []string
	errors     []error
	started    time.Time
	written    bool
}

// NewRecord creates the record for file, with its output placed under target.
func NewRecord(file, sourceRoot, targetRoot, outputExt string) *Record {
	in := ResolvePath(file, sourceRoot, "")
	return &Record{
		SourceFile: file,
		Input:      in,
		Output:     ResolvePath(in.Resolve(targetRoot), targetRoot, outputExt),
	}
}

// AddCSS appends a CSS version.
func (r *Record) AddCSS(css string) { r.cssHistory = append(r.cssHistory, css) }

// AddMap appends a source map version.
func (r *Record) AddMap(m string) { r.mapHistory = append(r.mapHistory, m) }

// CSS returns the latest CSS, if any.
func (r *Record) CSS() (string, bool) { return last(r.cssHistory) }

// Map returns the latest source map, if any.
func (r *Record) Map() (string, bool) { return last(r.mapHistory) }

// CSSHistory returns every CSS version in stage order.
func (r *Record) CSSHistory() []string { return append([]string(nil), r.cssHistory...) }

// MapHistory returns every source map version in stage order.
func (r *Record) MapHistory() []string { return append([]string(nil), r.mapHistory...) }

// AddError appends err.
func (r *Record) AddError(err error) {
	if err != nil {
		r.errors = append(r.errors, err)
	}
}

// SetErrors replaces the collected errors.
func (r *Record) SetErrors(errs []error) { r.errors = append([]error(nil), errs...) }

// Errors returns the collected errors.
func (r *Record) Errors() []error { return append([]error(nil), r.errors...) }

// HasErrors reports whether any error was collected.
func (r *Record) HasErrors() bool { return len(r.errors) > 0 }

// ClearMemory drops the content histories. Metadata, timings and stats stay.
func (r *Record) ClearMemory() {
	r.cssHistory = nil
	r.mapHistory = nil
}

func (r *Record) setProcessStats(out *postprocess.Output) {
	r.Stats.Processed = &ProcessStats{Messages: append([]string(nil), out.Messages...)}
}

func last(history []string) (string, bool) {
	if len(history) == 0 {
		return "", false
	}
	return history[len(history)-1], true
}
