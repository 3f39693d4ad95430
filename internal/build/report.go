package build

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// Report is the persisted summary of a run.
type Report struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time    `json:"started_at" yaml:"started_at"`
	DurationMS  float64      `json:"duration_ms" yaml:"duration_ms"`
	Source      string       `json:"source,omitempty" yaml:"source,omitempty"`
	Target      string       `json:"target,omitempty" yaml:"target,omitempty"`
	OptionsFile string       `json:"options_file,omitempty" yaml:"options_file,omitempty"`
	Extensions  []string     `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Sources     int          `json:"sources" yaml:"sources"`
	Rendered    int          `json:"rendered" yaml:"rendered"`
	Processed   int          `json:"processed" yaml:"processed"`
	Written     int          `json:"written" yaml:"written"`
	Maps        int          `json:"maps" yaml:"maps"`
	Files       []FileReport `json:"files" yaml:"files"`
}

// FileReport is the persisted summary of one file.
type FileReport struct {
	Input         string             `json:"input" yaml:"input"`
	Output        string             `json:"output" yaml:"output"`
	Skipped       bool               `json:"skipped" yaml:"skipped"`
	Map           bool               `json:"map" yaml:"map"`
	Size          int64              `json:"size" yaml:"size"`
	IncludedFiles []string           `json:"included_files,omitempty" yaml:"included_files,omitempty"`
	Messages      []string           `json:"messages,omitempty" yaml:"messages,omitempty"`
	Errors        []string           `json:"errors,omitempty" yaml:"errors,omitempty"`
	TimingsMS     map[string]float64 `json:"timings_ms" yaml:"timings_ms"`
}

// Report converts the stats into their persisted form.
func (s *Stats) Report() Report {
	r := Report{
		RunID:       s.RunID,
		StartedAt:   s.StartedAt,
		DurationMS:  millis(s.Duration),
		OptionsFile: s.OptionsFile,
		Extensions:  s.Extensions,
		Sources:     s.Sources,
		Rendered:    s.Rendered,
		Processed:   s.Processed,
		Written:     s.Written,
		Maps:        s.Maps,
		Files:       make([]FileReport, 0, len(s.Files)),
	}
	if s.Source != nil {
		r.Source = s.Source.Resolved
	}
	if s.Target != nil {
		r.Target = s.Target.Resolved
	}
	for _, rec := range s.Files {
		fr := FileReport{
			Input:     rec.Input.Rel,
			Output:    rec.Output.Rel,
			Skipped:   rec.Skipped,
			Map:       rec.MapWritten,
			Size:      rec.Size,
			TimingsMS: make(map[string]float64),
		}
		if rec.Stats.Rendered != nil {
			fr.IncludedFiles = rec.Stats.Rendered.IncludedFiles
		}
		if rec.Stats.Processed != nil {
			fr.Messages = rec.Stats.Processed.Messages
		}
		for _, err := range rec.Errors() {
			fr.Errors = append(fr.Errors, dberrors.Describe(err, true))
		}
		for name, timing := range map[string]Timing{
			"total":     rec.Timings.Total,
			"rendered":  rec.Timings.Rendered,
			"processed": rec.Timings.Processed,
			"written":   rec.Timings.Written,
		} {
			if d, ok := timing.Get(); ok {
				fr.TimingsMS[name] = millis(d)
			}
		}
		r.Files = append(r.Files, fr)
	}
	return r
}

// Persist writes the run report to path. The format follows the extension:
// .yaml or .yml for YAML, anything else JSON.
func (s *Stats) Persist(fs storage.FileSystem, path string) error {
	report := s.Report()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(report)
	default:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryInternal, "encode run report").Build()
	}
	if err := fs.WriteFile(path, data); err != nil {
		return dberrors.WrapError(fmt.Errorf("%w: %w", ErrWriteFailed, err), dberrors.CategoryFileSystem, "write run report").
			WithContext("file", path).
			Build()
	}
	return nil
}
