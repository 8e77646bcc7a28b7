// Package resample probes the point fields of an unstructured mesh onto a
// regular grid and splits the result into one field per array.
package resample

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nirfast/mesh2image/grid"
	"github.com/nirfast/mesh2image/mesh"
	"github.com/nirfast/mesh2image/utils"
)

var (
	ErrNoGeometry = errors.New("mesh has no usable geometry")
	ErrNoOutput   = errors.New("sampling grid has no points")
)

// Field is one mesh array sampled on the grid. Geometry is the grid as it
// stands after the call; Physical is where the samples were taken in world
// space. The two differ only for canonicalized derived grids.
type Field struct {
	Name          string
	Geometry      grid.Geometry
	Physical      grid.Geometry
	NumComponents int
	Values        []float64 // tuple-major, x fastest
}

func (f *Field) NumPoints() int {
	return len(f.Values) / f.NumComponents
}

func (f *Field) Tuple(n int) []float64 {
	return f.Values[n*f.NumComponents : (n+1)*f.NumComponents]
}

// Component copies component c out of every tuple
func (f *Field) Component(c int) []float64 {
	vals := make([]float64, f.NumPoints())
	for n := range vals {
		vals[n] = f.Values[n*f.NumComponents+c]
	}
	return vals
}

// Range returns the min and max of component c
func (f *Field) Range(c int) (min, max float64) {
	vals := f.Component(c)
	if len(vals) == 0 {
		return
	}
	return floats.Min(vals), floats.Max(vals)
}

// Resample samples every point array of m at the points of g.
//
// For derived grids the grid and its reference are canonicalized once
// probing completes, and the reference's background array name is added to
// the exclusion policy. A mesh without point arrays yields an empty map.
func Resample(ctx context.Context, m *mesh.Mesh, g *grid.SamplingGrid, opts ...Option) (map[string]*Field, error) {
	o := newOptions(opts)
	if m == nil || m.NumVertices == 0 {
		return nil, fmt.Errorf("%w: no points", ErrNoGeometry)
	}
	if g == nil || g.NumPoints() == 0 {
		return nil, ErrNoOutput
	}

	loc := NewLocator(m)
	if loc.NumCells() == 0 {
		return nil, fmt.Errorf("%w: no volumetric cells in %d elements", ErrNoGeometry, m.NumElements)
	}
	if loc.NumSkipped() > 0 {
		o.logf("skipped %d degenerate cells\n", loc.NumSkipped())
	}
	o.logf("-- Probing %d arrays at %d grid points (%s)\n", len(m.PointData), g.NumPoints(), g.Geometry)

	meter := &progressMeter{fn: o.Progress, total: g.NumPoints()}
	arrays, err := probe(ctx, loc, m, g, o, meter)
	if err != nil {
		return nil, err
	}

	physical := g.Geometry
	g.Canonicalize()

	exclude := o.Exclude.clone()
	if g.Derived() {
		name := DefaultBackgroundName
		if g.Background != nil {
			name = g.Background.Name
		}
		exclude.Add(name)
	}
	return split(exclude.Apply(arrays), g.Geometry, physical, o), nil
}

// split wraps each usable array as an output field
func split(arrays []*utils.DataArray, geom, physical grid.Geometry, o *Options) map[string]*Field {
	fields := make(map[string]*Field, len(arrays))
	for _, da := range arrays {
		if da.NumComponents < 1 || len(da.Values) == 0 {
			o.logf("skipping array %q: %d components, %d values\n", da.Name, da.NumComponents, len(da.Values))
			continue
		}
		fields[da.Name] = &Field{
			Name:          da.Name,
			Geometry:      geom,
			Physical:      physical,
			NumComponents: da.NumComponents,
			Values:        da.Values,
		}
	}
	return fields
}
