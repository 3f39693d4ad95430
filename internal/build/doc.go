// Package build provides the stylesheet build pipeline.
//
// A Builder resolves a source path into a list of style files and a target
// path into an output directory, then drives every file through render,
// post-process and write in order. Each file gets a Record carrying its path
// data, content history, timings and errors; the run returns aggregate Stats.
//
// The package also defines sentinel errors for stage failures. They are
// always wrapped with the file path into a ClassifiedError so callers can use
// errors.Is on both the sentinel and the underlying cause.
package build
