// Package grid describes the regular image lattice that mesh fields are
// sampled onto.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nirfast/mesh2image/utils"
)

var (
	ErrDegenerateSpacing = errors.New("degenerate grid spacing")
	ErrDegenerateExtent  = errors.New("degenerate grid extent")
)

// Geometry is the world placement of a regular grid. Point (i,j,k) sits at
// Origin + (i,j,k)*Spacing, with i varying fastest in the flat point order.
type Geometry struct {
	Origin     [3]float64
	Spacing    [3]float64
	Dimensions [3]int
}

// Canonical is the unit frame a derived grid is reset to after probing
var Canonical = Geometry{Spacing: [3]float64{1, 1, 1}}

func (g *Geometry) NumPoints() int {
	return g.Dimensions[0] * g.Dimensions[1] * g.Dimensions[2]
}

// Index returns the flat index of point (i,j,k)
func (g *Geometry) Index(i, j, k int) int {
	return i + g.Dimensions[0]*(j+g.Dimensions[1]*k)
}

// IJK is the inverse of Index
func (g *Geometry) IJK(n int) (i, j, k int) {
	nx, ny := g.Dimensions[0], g.Dimensions[1]
	i = n % nx
	j = (n / nx) % ny
	k = n / (nx * ny)
	return
}

// Point returns the world coordinates of flat point n
func (g *Geometry) Point(n int) r3.Vec {
	i, j, k := g.IJK(n)
	return r3.Vec{
		X: g.Origin[0] + float64(i)*g.Spacing[0],
		Y: g.Origin[1] + float64(j)*g.Spacing[1],
		Z: g.Origin[2] + float64(k)*g.Spacing[2],
	}
}

// Bounds returns the box spanned by the first and last grid points
func (g *Geometry) Bounds() r3.Box {
	var b r3.Box
	b.Min = r3.Vec{X: g.Origin[0], Y: g.Origin[1], Z: g.Origin[2]}
	b.Max = b.Min
	if g.NumPoints() > 0 {
		b.Max = g.Point(g.NumPoints() - 1)
	}
	return b
}

func (g *Geometry) IsCanonical() bool {
	return g.Origin == Canonical.Origin && g.Spacing == Canonical.Spacing
}

func (g Geometry) String() string {
	return fmt.Sprintf("dims %v origin %v spacing %v", g.Dimensions, g.Origin, g.Spacing)
}

// SamplingGrid is the set of points fields are probed at
type SamplingGrid struct {
	Geometry

	// Background is the reference volume's own point array. It is passed
	// through probing untouched and removed again before splitting.
	Background *utils.DataArray

	derived   bool
	reference *Geometry
}

// FromReference copies the geometry of an existing volume. The reference is
// remembered so Canonicalize can reset it.
func FromReference(ref *Geometry) *SamplingGrid {
	return &SamplingGrid{
		Geometry:  *ref,
		derived:   true,
		reference: ref,
	}
}

// FromBounds lays a uniform lattice over b with round(extent/spacing)
// points per axis, starting at b.Min.
func FromBounds(b r3.Box, spacing float64) (*SamplingGrid, error) {
	if !(spacing > 0) || math.IsInf(spacing, 1) {
		return nil, fmt.Errorf("%w: spacing %g must be positive", ErrDegenerateSpacing, spacing)
	}
	var (
		lo = [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
		hi = [3]float64{b.Max.X, b.Max.Y, b.Max.Z}
		sg = &SamplingGrid{}
	)
	for a := 0; a < 3; a++ {
		sg.Origin[a] = lo[a]
		sg.Spacing[a] = spacing
		sg.Dimensions[a] = int(math.Round(math.Abs(hi[a]-lo[a]) / spacing))
	}
	for a, n := range sg.Dimensions {
		if n == 0 {
			return nil, fmt.Errorf("%w: axis %c extent %g is below spacing %g",
				ErrDegenerateExtent, "xyz"[a], math.Abs(hi[a]-lo[a]), spacing)
		}
	}
	return sg, nil
}

// Derived reports whether the grid was copied from a reference volume
func (sg *SamplingGrid) Derived() bool { return sg.derived }

// Reference returns the caller's geometry for derived grids, or nil
func (sg *SamplingGrid) Reference() *Geometry { return sg.reference }

// Canonicalize resets a derived grid and its reference to the unit frame.
// Dimensions are kept. Synthesized grids are left alone.
func (sg *SamplingGrid) Canonicalize() {
	if !sg.derived {
		return
	}
	sg.Origin, sg.Spacing = Canonical.Origin, Canonical.Spacing
	if sg.reference != nil {
		sg.reference.Origin, sg.reference.Spacing = Canonical.Origin, Canonical.Spacing
	}
}
