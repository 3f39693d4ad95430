// Package inline provides the built-in base64 extension, which registers the
// load-base64($source, $mime: null) stylesheet function. It turns a file
// relative to the run's source root into a quoted data URI.
package inline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/logfields"
	"git.home.luguber.info/inful/stylebuild/internal/plugin"
)

// Name is the registry name of the extension.
const Name = "base64"

// Signature is the stylesheet signature of the registered function.
const Signature = "load-base64($source, $mime: null)"

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrMimeDetectionFailed = errors.New("failed to detect mime type")
	ErrNoSourceRoot        = errors.New("no run in progress")
)

// Options configure the extension from the options file.
type Options struct {
	// MaxBytes rejects files larger than this; zero means no limit.
	MaxBytes int64 `mapstructure:"max_bytes"`

	// ExtensionFallback allows guessing the type from the file extension when
	// content sniffing only finds a generic type.
	ExtensionFallback bool `mapstructure:"extension_fallback"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{ExtensionFallback: true}
}

// Register adds the extension to a builtin resolver.
func Register(r *plugin.BuiltinResolver) {
	r.Register(Name, plugin.Factory(Factory))
}

// Factory enables host functions and registers load-base64.
func Factory(raw map[string]any, host plugin.Host) error {
	opts := DefaultOptions()
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}

	copts := host.CompilerOptions()
	copts.HostFunctions = true
	if copts.Functions == nil {
		copts.Functions = make(map[string]compiler.Function)
	}
	l := &loader{host: host, cache: host.Cache(Name), opts: opts}
	copts.Functions[Signature] = l.load
	return nil
}

type loader struct {
	host  plugin.Host
	cache *plugin.Cache
	opts  Options
}

func (l *loader) load(_ context.Context, args []string) (string, error) {
	source, explicitMime := args[0], args[1]
	if source == "" {
		return "", fmt.Errorf("%w: empty source", ErrFileNotFound)
	}

	key := source
	if explicitMime != "" {
		key += ":" + explicitMime
	}
	if cached, ok := l.cache.Get(key); ok {
		return cached, nil
	}

	root, ok := l.host.SourceRoot()
	if !ok {
		return "", ErrNoSourceRoot
	}
	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, source)
	}

	fs := l.host.FileSystem()
	if !fs.Exists(path) || fs.IsDir(path) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}
	if l.opts.MaxBytes > 0 && int64(len(data)) > l.opts.MaxBytes {
		return "", fmt.Errorf("%s is %d bytes, limit is %d", path, len(data), l.opts.MaxBytes)
	}

	mimeType := explicitMime
	if mimeType == "" {
		mimeType, err = detectMime(path, data, l.opts.ExtensionFallback)
		if err != nil {
			return "", err
		}
	}

	out := `"data:` + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data) + `"`
	l.cache.Set(key, out)
	if logger := l.host.Logger(); logger != nil {
		logger.Debug("Inlined asset", logfields.Path(path), logfields.Count(len(data)))
	}
	return out, nil
}

// detectMime sniffs the content type. Generic results fall back to the file
// extension when allowed; an undetectable binary is an error.
func detectMime(path string, data []byte, extensionFallback bool) (string, error) {
	sniffed := baseType(http.DetectContentType(data))
	generic := sniffed == "application/octet-stream" || sniffed == "text/plain" || sniffed == "text/xml"
	if generic && extensionFallback {
		if byExt := baseType(mime.TypeByExtension(filepath.Ext(path))); byExt != "" && byExt != "application/octet-stream" {
			return byExt, nil
		}
	}
	if sniffed == "application/octet-stream" || sniffed == "" {
		return "", fmt.Errorf("%w: %s", ErrMimeDetectionFailed, path)
	}
	return sniffed, nil
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return mediaType
}
