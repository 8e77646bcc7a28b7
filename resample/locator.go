package resample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nirfast/mesh2image/mesh"
)

// insideTol is the barycentric slack that still counts as inside a cell, so
// grid points on shared faces and on the hull are found.
const insideTol = 1e-9

// tetra is one linear simplex of the mesh, indexed by its centroid
type tetra struct {
	id       int
	verts    [4]int
	centroid r3.Vec
	v0       r3.Vec
	inv      [9]float64 // row-major inverse of [v1-v0 v2-v0 v3-v0]
}

var _ kdtree.Comparable = (*tetra)(nil)

func (t *tetra) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(*tetra)
	switch d {
	case 0:
		return t.centroid.X - q.centroid.X
	case 1:
		return t.centroid.Y - q.centroid.Y
	case 2:
		return t.centroid.Z - q.centroid.Z
	}
	panic("illegal dimension")
}

func (t *tetra) Dims() int { return 3 }

// Distance is the squared centroid distance
func (t *tetra) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(t.centroid, c.(*tetra).centroid))
}

// barycentric returns the weights of p with respect to the four vertices
func (t *tetra) barycentric(p r3.Vec) (w [4]float64) {
	d := r3.Sub(p, t.v0)
	w[1] = t.inv[0]*d.X + t.inv[1]*d.Y + t.inv[2]*d.Z
	w[2] = t.inv[3]*d.X + t.inv[4]*d.Y + t.inv[5]*d.Z
	w[3] = t.inv[6]*d.X + t.inv[7]*d.Y + t.inv[8]*d.Z
	w[0] = 1 - w[1] - w[2] - w[3]
	return
}

func inside(w [4]float64) bool {
	for _, l := range w {
		if l < -insideTol {
			return false
		}
	}
	return true
}

// tetras implements kdtree.Interface over a slice of cells
type tetras []tetra

func (ts tetras) Index(i int) kdtree.Comparable { return &ts[i] }
func (ts tetras) Len() int                      { return len(ts) }
func (ts tetras) Slice(start, end int) kdtree.Interface {
	return ts[start:end]
}

func (ts tetras) Pivot(d kdtree.Dim) int {
	p := tetPlane{dim: d, tetras: ts}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

type tetPlane struct {
	dim    kdtree.Dim
	tetras tetras
}

func (p tetPlane) Less(i, j int) bool {
	return p.tetras[i].Compare(&p.tetras[j], p.dim) < 0
}
func (p tetPlane) Swap(i, j int)  { p.tetras[i], p.tetras[j] = p.tetras[j], p.tetras[i] }
func (p tetPlane) Len() int       { return len(p.tetras) }
func (p tetPlane) Slice(start, end int) kdtree.SortSlicer {
	p.tetras = p.tetras[start:end]
	return p
}

// Locator finds the cell enclosing a point. Every cell lies inside the ball
// of radius maxRadius around its centroid, so an enclosing cell is always
// among the centroids within maxRadius of the query.
type Locator struct {
	tree      *kdtree.Tree
	maxRadius float64
	nCells    int
	nSkipped  int
}

// NewLocator indexes the tetrahedra of m. Degenerate (zero volume) cells
// are dropped.
func NewLocator(m *mesh.Mesh) *Locator {
	var (
		cells = m.Tetrahedra()
		ts    = make(tetras, 0, len(cells))
		T     = mat.NewDense(3, 3, nil)
		inv   mat.Dense
		loc   = &Locator{}
	)
	for id, c := range cells {
		var v [4]r3.Vec
		for i, n := range c {
			v[i] = m.Vertex(n)
		}
		for col := 1; col < 4; col++ {
			e := r3.Sub(v[col], v[0])
			T.Set(0, col-1, e.X)
			T.Set(1, col-1, e.Y)
			T.Set(2, col-1, e.Z)
		}
		var h float64
		for i := 1; i < 4; i++ {
			h = math.Max(h, r3.Norm(r3.Sub(v[i], v[0])))
		}
		if math.Abs(mat.Det(T)) <= 1e-12*h*h*h {
			loc.nSkipped++
			continue
		}
		if err := inv.Inverse(T); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				loc.nSkipped++
				continue
			}
		}
		t := tetra{id: id, verts: c, v0: v[0]}
		copy(t.inv[:], inv.RawMatrix().Data)
		t.centroid = r3.Scale(0.25, r3.Add(r3.Add(v[0], v[1]), r3.Add(v[2], v[3])))
		for _, vv := range v {
			loc.maxRadius = math.Max(loc.maxRadius, r3.Norm(r3.Sub(vv, t.centroid)))
		}
		ts = append(ts, t)
	}
	loc.nCells = len(ts)
	if len(ts) > 0 {
		loc.tree = kdtree.New(ts, false)
	}
	return loc
}

// NumSkipped is the number of degenerate cells left out of the index
func (loc *Locator) NumSkipped() int { return loc.nSkipped }

// NumCells is the number of indexed, non-degenerate tetrahedra
func (loc *Locator) NumCells() int { return loc.nCells }

// Find returns the enclosing cell vertices and barycentric weights. When
// several cells contain p, the one first in mesh order wins.
func (loc *Locator) Find(p r3.Vec) (verts [4]int, w [4]float64, ok bool) {
	if loc.tree == nil {
		return
	}
	// Pad the radius slightly so cells whose far vertex sits exactly at
	// maxRadius are not lost to rounding
	r := loc.maxRadius * (1 + 1e-9)
	keeper := kdtree.NewDistKeeper(r * r)
	loc.tree.NearestSet(keeper, &tetra{centroid: p})

	candidates := make([]*tetra, 0, len(keeper.Heap))
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		candidates = append(candidates, cd.Comparable.(*tetra))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })
	for _, t := range candidates {
		if w = t.barycentric(p); inside(w) {
			return t.verts, w, true
		}
	}
	return verts, [4]float64{}, false
}
