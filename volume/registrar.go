package volume

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/nirfast/mesh2image/resample"
)

// FileRegistrar writes every field it is handed to
// <Dir>/<Prefix>_<field><Ext>, placed at the field's physical geometry.
type FileRegistrar struct {
	Fs     afero.Fs
	Dir    string
	Prefix string
	Ext    string // ".vtk" or ".nrrd", default ".vtk"
	// Paths overrides the file of individual fields. Relative paths are
	// taken from Dir.
	Paths map[string]string

	Written []string
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// Path returns the file a field of the given name is written to
func (r *FileRegistrar) Path(field string) string {
	if path, ok := r.Paths[field]; ok && path != "" {
		if filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(r.Dir, path)
	}
	ext := r.Ext
	if ext == "" {
		ext = ".vtk"
	}
	name := fileNameReplacer.Replace(field)
	if r.Prefix != "" {
		name = r.Prefix + "_" + name
	}
	return filepath.Join(r.Dir, name+ext)
}

func (r *FileRegistrar) Register(f *resample.Field) error {
	if r.Fs == nil {
		r.Fs = afero.NewOsFs()
	}
	path := r.Path(f.Name)
	if dir := filepath.Dir(path); dir != "." {
		if err := r.Fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := Write(r.Fs, path, FromField(f)); err != nil {
		return err
	}
	r.Written = append(r.Written, path)
	return nil
}
