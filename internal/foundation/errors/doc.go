// Package errors provides foundational, type-safe error primitives used across stylebuild.
//
// This package contains classified error types and helpers for error handling in the
// build pipeline, including a fluent builder API for constructing ClassifiedError values
// with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, build, filesystem, plugin, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter for error presentation
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryBuild, "render failed").
//		WithContext("file", path).
//		Build()
package errors
