package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystemListFiles(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b.scss", "_partial.scss", "nested/a.sass", "notes.txt", "nested/deep/c.SCSS"} {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	fsys := NewOSFileSystem()
	files, err := fsys.ListFiles(root, ExtensionFilter([]string{".scss", ".sass"}, "_"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "b.scss"),
		filepath.Join(root, "nested", "a.sass"),
		filepath.Join(root, "nested", "deep", "c.SCSS"),
	}, files)
}

func TestOSFileSystemWriteCreatesParents(t *testing.T) {
	root := t.TempDir()
	fsys := NewOSFileSystem()
	target := filepath.Join(root, "dist", "css", "main.css")

	require.NoError(t, fsys.WriteFile(target, []byte("a{}")))
	assert.True(t, fsys.Exists(target))
	assert.False(t, fsys.IsDir(target))
	assert.True(t, fsys.IsDir(filepath.Dir(target)))

	data, err := fsys.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(data))
}

func TestOSFileSystemReadMissing(t *testing.T) {
	_, err := NewOSFileSystem().ReadFile(filepath.Join(t.TempDir(), "missing.scss"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
