package build

import "time"

// Stats summarizes a run. Written counts CSS files, Maps counts source maps
// written next to them.
type Stats struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	OptionsFile string
	Extensions  []string

	Source *SourceDescriptor
	Target *TargetDescriptor

	Sources   int
	Rendered  int
	Processed int
	Written   int
	Maps      int

	Files []*Record
}

// Skipped returns the records of files that were not written.
func (s *Stats) Skipped() []*Record {
	var out []*Record
	for _, rec := range s.Files {
		if rec.Skipped {
			out = append(out, rec)
		}
	}
	return out
}

// Failed returns the records that collected at least one error.
func (s *Stats) Failed() []*Record {
	var out []*Record
	for _, rec := range s.Files {
		if rec.HasErrors() {
			out = append(out, rec)
		}
	}
	return out
}
