// Package volume reads and writes single-array image volumes, the reference
// grids resampling starts from and the files its outputs end up in.
package volume

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/nirfast/mesh2image/grid"
	"github.com/nirfast/mesh2image/resample"
	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/vtk"
)

var ErrNotFound = errors.New("volume file not found")

// Volume is a regular grid carrying at most one point array
type Volume struct {
	Name string
	grid.Geometry
	Scalars *utils.DataArray
}

// FromField wraps a resampled field, placed at its physical geometry
func FromField(f *resample.Field) *Volume {
	return &Volume{
		Name:     f.Name,
		Geometry: f.Physical,
		Scalars: &utils.DataArray{
			Name:          f.Name,
			Attribute:     utils.ScalarsAttribute,
			NumComponents: f.NumComponents,
			Values:        f.Values,
		},
	}
}

func (v *Volume) Validate() error {
	for a := 0; a < 3; a++ {
		if v.Dimensions[a] < 1 {
			return fmt.Errorf("volume %q: dimension %d is %d", v.Name, a, v.Dimensions[a])
		}
		if !(v.Spacing[a] > 0) {
			return fmt.Errorf("volume %q: spacing %d is %g", v.Name, a, v.Spacing[a])
		}
	}
	if v.Scalars != nil {
		if v.Scalars.NumComponents < 1 {
			return fmt.Errorf("volume %q: array has no components", v.Name)
		}
		return v.Scalars.Validate(v.NumPoints())
	}
	return nil
}

// Read loads a volume from a .vtk (STRUCTURED_POINTS) or .nrrd file
func Read(fsys afero.Fs, path string) (*Volume, error) {
	var read func(r afero.File) (*Volume, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".vtk":
		read = func(r afero.File) (*Volume, error) { return ReadVTK(r) }
	case ".nrrd":
		read = func(r afero.File) (*Volume, error) { return ReadNRRD(r) }
	default:
		return nil, fmt.Errorf("%s: unsupported volume format %q", path, ext)
	}
	file, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer file.Close()

	v, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if v.Name == "" {
		base := filepath.Base(path)
		v.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return v, nil
}

// Write stores v as BINARY legacy VTK or raw NRRD, chosen by extension
func Write(fsys afero.Fs, path string, v *Volume) (err error) {
	if err = v.Validate(); err != nil {
		return
	}
	var write func(f afero.File) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".vtk":
		write = func(f afero.File) error { return WriteVTK(f, v, vtk.Binary) }
	case ".nrrd":
		write = func(f afero.File) error { return WriteNRRD(f, v) }
	default:
		return fmt.Errorf("%s: unsupported volume format %q", path, ext)
	}
	file, err := fsys.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return write(file)
}
