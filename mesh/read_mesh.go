package mesh

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrNotFound  = errors.New("mesh file not found")
	ErrMalformed = errors.New("malformed mesh file")
)

// Load reads a mesh file from the OS filesystem based on extension
func Load(filename string) (*Mesh, error) {
	return LoadFs(afero.NewOsFs(), filename)
}

// LoadFs reads a mesh file from fsys based on extension. Every point
// attribute array is read. A missing path wraps ErrNotFound whatever its
// extension; every other failure wraps ErrMalformed.
func LoadFs(fsys afero.Fs, filename string) (*Mesh, error) {
	fi, err := fsys.Stat(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, filename, err)
	case fi.IsDir():
		return nil, fmt.Errorf("%w: %s: is a directory", ErrMalformed, filename)
	}

	var read func(io.Reader) (*Mesh, error)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".vtk":
		read = ReadVTK
	case ".su2":
		read = ReadSU2
	default:
		return nil, fmt.Errorf("%w: %s: unsupported mesh format %q", ErrMalformed, filename, ext)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("%w: opening %s: %v", ErrMalformed, filename, err)
	}
	defer file.Close()

	msh, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, filename, err)
	}
	if msh.NumVertices == 0 {
		return nil, fmt.Errorf("%w: %s: no points", ErrMalformed, filename)
	}
	return msh, nil
}
