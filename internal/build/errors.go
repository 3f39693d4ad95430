package build

import (
	"errors"
	"fmt"

	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
)

// Sentinel errors for resolution and stage failures. They are always wrapped
// with contextual information at the call site.
var (
	ErrSourceNotFound     = errors.New("source not found")
	ErrSourceEmpty        = errors.New("source has no style files")
	ErrTargetNotDirectory = errors.New("target is not a directory")
	ErrEmptyOutput        = errors.New("compiler produced no output")
	ErrRenderFailed       = errors.New("render failed")
	ErrProcessFailed      = errors.New("post-process failed")
	ErrWriteFailed        = errors.New("write failed")
	ErrOutputIsSource     = errors.New("output would overwrite its source")
)

// Stage names used in error context, logs and metrics.
const (
	StageResolve = "resolve"
	StageOptions = "options"
	StageLoad    = "extensions"
	StageRender  = "render"
	StageProcess = "process"
	StageWrite   = "write"
)

// stageError wraps sentinel and cause into a classified error naming file.
// Resolution errors are fatal.
func stageError(category dberrors.ErrorCategory, sentinel, cause error, stage, file string) *dberrors.ClassifiedError {
	wrapped := sentinel
	if cause != nil && !errors.Is(cause, sentinel) {
		wrapped = fmt.Errorf("%w: %w", sentinel, cause)
	} else if cause != nil {
		wrapped = cause
	}
	eb := categoryError(category, sentinel.Error()).
		WithCause(wrapped).
		WithContext("file", file).
		WithContext("stage", stage)
	if stage == StageResolve {
		eb.Fatal()
	}
	return eb.Build()
}

func categoryError(category dberrors.ErrorCategory, message string) *dberrors.ErrorBuilder {
	switch category {
	case dberrors.CategoryBuild:
		return dberrors.BuildError(message)
	case dberrors.CategoryFileSystem:
		return dberrors.FileSystemError(message)
	case dberrors.CategoryValidation:
		return dberrors.ValidationError(message)
	default:
		return dberrors.NewError(category, message)
	}
}
