package plugin

import "errors"

// Sentinel errors for extension loading. They are wrapped with the extension
// name at the call site.
var (
	ErrAlreadyLoaded        = errors.New("extension already loaded")
	ErrExtensionNotFound    = errors.New("extension not found")
	ErrExtensionNotCallable = errors.New("extension is not callable")
	ErrExtensionFailed      = errors.New("extension failed")
	ErrInvalidOptionsObject = errors.New("invalid extension options object")
)
