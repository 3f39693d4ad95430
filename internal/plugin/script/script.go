// Package script resolves extensions written in Starlark. A script extension
// is a .star file defining setup(options, builder). The builder struct carries add_load_path,
// register_function, set_option and source_root. print goes to the engine log.
package script

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/logfields"
	"git.home.luguber.info/inful/stylebuild/internal/plugin"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

// Ext is the file extension of script extensions.
const Ext = ".star"

// Resolver loads .star files relative to a base directory.
type Resolver struct {
	fs      storage.FileSystem
	baseDir string
}

// NewResolver creates a resolver reading scripts through fs.
func NewResolver(fs storage.FileSystem, baseDir string) *Resolver {
	return &Resolver{fs: fs, baseDir: baseDir}
}

// Resolve executes the script and returns a plugin.Factory bound to its setup
// function. References without the .star extension are not found.
func (r *Resolver) Resolve(ref string) (any, error) {
	if !strings.HasSuffix(ref, Ext) {
		return nil, fmt.Errorf("%w: %s", plugin.ErrExtensionNotFound, ref)
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, ref)
	}
	if !r.fs.Exists(path) {
		return nil, fmt.Errorf("%w: %s", plugin.ErrExtensionNotFound, path)
	}
	src, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{Name: "load:" + filepath.Base(path)}
	globals, err := starlark.ExecFile(thread, path, src, nil) //nolint:staticcheck // SA1019: ExecFileOptions not needed here
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", path, err)
	}

	setup, ok := globals["setup"]
	if !ok {
		// A script without setup resolves to a value that is not callable.
		return globals, nil
	}
	callable, ok := setup.(starlark.Callable)
	if !ok {
		return setup, nil
	}

	ext := &extension{path: path, setup: callable}
	return plugin.Factory(ext.run), nil
}

type extension struct {
	path  string
	setup starlark.Callable
}

func (e *extension) run(options map[string]any, host plugin.Host) error {
	opts, err := GoToStarlark(options)
	if err != nil {
		return fmt.Errorf("convert options: %w", err)
	}
	thread := &starlark.Thread{
		Name: "setup:" + filepath.Base(e.path),
		Print: func(_ *starlark.Thread, msg string) {
			if logger := host.Logger(); logger != nil {
				logger.Info(msg, logfields.Extension(e.path))
			}
		},
	}
	_, err = starlark.Call(thread, e.setup, starlark.Tuple{opts, e.builder(host)}, nil)
	return err
}

// builder exposes the host to the script.
func (e *extension) builder(host plugin.Host) starlark.Value {
	dir := filepath.Dir(e.path)
	return starlarkstruct.FromStringDict(starlark.String("builder"), starlark.StringDict{
		"add_load_path": starlark.NewBuiltin("add_load_path", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var p string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &p); err != nil {
				return nil, err
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, p)
			}
			opts := host.CompilerOptions()
			opts.LoadPaths = append(opts.LoadPaths, p)
			return starlark.None, nil
		}),
		"register_function": starlark.NewBuiltin("register_function", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var (
				sig string
				fn  starlark.Callable
			)
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "signature", &sig, "fn", &fn); err != nil {
				return nil, err
			}
			if _, err := compiler.ParseSignature(sig); err != nil {
				return nil, err
			}
			opts := host.CompilerOptions()
			if opts.Functions == nil {
				opts.Functions = make(map[string]compiler.Function)
			}
			opts.Functions[sig] = wrapFunction(e.path, fn)
			opts.HostFunctions = true
			return starlark.None, nil
		}),
		"set_option": starlark.NewBuiltin("set_option", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var (
				name  string
				value starlark.Value
			)
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
				return nil, err
			}
			return starlark.None, setOption(host.CompilerOptions(), name, value)
		}),
		"source_root": starlark.NewBuiltin("source_root", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			if root, ok := host.SourceRoot(); ok {
				return starlark.String(root), nil
			}
			return starlark.None, nil
		}),
	})
}

func setOption(opts *compiler.Options, name string, value starlark.Value) error {
	switch name {
	case "output_style":
		s, ok := starlark.AsString(value)
		if !ok || (s != string(compiler.StyleExpanded) && s != string(compiler.StyleCompressed)) {
			return fmt.Errorf("output_style must be %q or %q", compiler.StyleExpanded, compiler.StyleCompressed)
		}
		opts.OutputStyle = compiler.OutputStyle(s)
	case "source_map":
		b, ok := value.(starlark.Bool)
		if !ok {
			return fmt.Errorf("source_map must be a bool, got %s", value.Type())
		}
		opts.SourceMap = bool(b)
	default:
		return fmt.Errorf("unknown compiler option %q", name)
	}
	return nil
}

// wrapFunction adapts a Starlark callable to a compiler function. Each call
// runs on its own thread, cancelled with ctx.
func wrapFunction(path string, fn starlark.Callable) compiler.Function {
	return func(ctx context.Context, args []string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		thread := &starlark.Thread{Name: "call:" + fn.Name()}
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				thread.Cancel(ctx.Err().Error())
			case <-done:
			}
		}()

		sargs := make(starlark.Tuple, len(args))
		for i, a := range args {
			sargs[i] = starlark.String(a)
		}
		res, err := starlark.Call(thread, fn, sargs, nil)
		if err != nil {
			return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		s, ok := starlark.AsString(res)
		if !ok {
			return res.String(), nil
		}
		return s, nil
	}
}
