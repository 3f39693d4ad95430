package plugin

import (
	"log/slog"

	"git.home.luguber.info/inful/stylebuild/internal/compiler"
	"git.home.luguber.info/inful/stylebuild/internal/postprocess"
	"git.home.luguber.info/inful/stylebuild/internal/storage"
)

type fakeHost struct {
	opts   compiler.Options
	chain  postprocess.Chain
	root   string
	fs     storage.FileSystem
	caches *Caches
}

func newFakeHost() *fakeHost {
	return &fakeHost{fs: storage.NewMemFileSystem(), caches: NewCaches()}
}

func (h *fakeHost) CompilerOptions() *compiler.Options { return &h.opts }
func (h *fakeHost) Processors() *postprocess.Chain     { return &h.chain }
func (h *fakeHost) SourceRoot() (string, bool)         { return h.root, h.root != "" }
func (h *fakeHost) FileSystem() storage.FileSystem     { return h.fs }
func (h *fakeHost) Cache(name string) *Cache           { return h.caches.Get(name) }
func (h *fakeHost) Logger() *slog.Logger               { return nil }
