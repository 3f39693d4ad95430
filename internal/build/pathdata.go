package build

import "path/filepath"

// PathData describes one file relative to a root directory.
type PathData struct {
	Root string
	Dir  string
	Name string
	Ext  string
	Path string
	Rel  string
}

// ResolvePath computes path data for file under root. A non-empty ext
// replaces the file's extension in Path. Rel is always "./"-prefixed; when
// file cannot be made relative to root the absolute path follows the prefix.
func ResolvePath(file, root, ext string) PathData {
	base := filepath.Base(file)
	fileExt := filepath.Ext(base)
	pd := PathData{
		Root: root,
		Dir:  filepath.Dir(file),
		Name: base[:len(base)-len(fileExt)],
		Ext:  fileExt,
		Path: file,
	}
	if ext != "" {
		pd.Ext = ext
		pd.Path = filepath.Join(pd.Dir, pd.Name+ext)
	}
	rel, err := filepath.Rel(root, pd.Path)
	if err != nil {
		rel = pd.Path
	}
	pd.Rel = "." + string(filepath.Separator) + rel
	return pd
}

// Resolve joins Rel back onto a root.
func (p PathData) Resolve(root string) string {
	return filepath.Join(root, p.Rel)
}
