package build

import (
	"fmt"
	"path/filepath"

	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// PartialPrefix marks style files that are only imported, never compiled.
const PartialPrefix = "_"

// SourceDescriptor is the resolved source of a run.
type SourceDescriptor struct {
	Root     string
	Input    string
	Resolved string
	Files    []string
}

// TargetDescriptor is the resolved output directory of a run.
type TargetDescriptor struct {
	Input    string
	Resolved string
	Created  bool
}

// ResolveSource turns input into the list of files to build. A directory is
// listed recursively, skipping partials and files without one of extensions.
func ResolveSource(fs storage.FileSystem, input string, extensions []string) (*SourceDescriptor, error) {
	resolved, err := filepath.Abs(input)
	if err != nil {
		return nil, stageError(dberrors.CategoryNotFound, ErrSourceNotFound, err, StageResolve, input)
	}
	if !fs.Exists(resolved) {
		return nil, stageError(dberrors.CategoryNotFound, ErrSourceNotFound, nil, StageResolve, resolved)
	}

	desc := &SourceDescriptor{Input: input, Resolved: resolved}
	if !fs.IsDir(resolved) {
		desc.Root = filepath.Dir(resolved)
		desc.Files = []string{resolved}
		return desc, nil
	}

	files, err := fs.ListFiles(resolved, storage.ExtensionFilter(extensions, PartialPrefix))
	if err != nil {
		return nil, stageError(dberrors.CategoryFileSystem, ErrSourceNotFound, err, StageResolve, resolved)
	}
	if len(files) == 0 {
		return nil, stageError(dberrors.CategoryValidation, ErrSourceEmpty,
			fmt.Errorf("no files matching %v", extensions), StageResolve, resolved)
	}
	desc.Root = resolved
	desc.Files = files
	return desc, nil
}

// ResolveTarget makes sure input exists as a directory, creating it if needed.
func ResolveTarget(fs storage.FileSystem, input string) (*TargetDescriptor, error) {
	resolved, err := filepath.Abs(input)
	if err != nil {
		return nil, stageError(dberrors.CategoryFileSystem, ErrTargetNotDirectory, err, StageResolve, input)
	}
	desc := &TargetDescriptor{Input: input, Resolved: resolved}
	if !fs.Exists(resolved) {
		if err := fs.MkdirAll(resolved); err != nil {
			return nil, stageError(dberrors.CategoryFileSystem, ErrTargetNotDirectory, err, StageResolve, resolved)
		}
		desc.Created = true
		return desc, nil
	}
	if !fs.IsDir(resolved) {
		return nil, stageError(dberrors.CategoryValidation, ErrTargetNotDirectory, nil, StageResolve, resolved)
	}
	return desc, nil
}
