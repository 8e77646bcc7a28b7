package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nirfast/mesh2image/utils"
)

// Mesh is an unstructured mesh with its per-point attribute arrays.
// It is not modified after a reader returns it.
type Mesh struct {
	Title string

	// Geometry
	Vertices [][]float64 // Vertex coordinates [nvertices][3]

	// Element data
	EtoV         [][]int             // Element to vertex connectivity [nelems][nverts_per_elem]
	ElementTypes []utils.ElementType // Element type for each element

	// Point data, in file order; names are unique
	PointData []*utils.DataArray

	// Mesh statistics
	NumElements int
	NumVertices int
}

// NewMesh creates an empty mesh
func NewMesh() *Mesh {
	return &Mesh{}
}

// PointArray returns the point array with the given name, or nil
func (m *Mesh) PointArray(name string) *utils.DataArray {
	for _, da := range m.PointData {
		if da.Name == name {
			return da
		}
	}
	return nil
}

// FieldNames lists the point array names in file order
func (m *Mesh) FieldNames() (names []string) {
	for _, da := range m.PointData {
		names = append(names, da.Name)
	}
	return
}

func (m *Mesh) addPointArray(da *utils.DataArray) error {
	if m.PointArray(da.Name) != nil {
		return fmt.Errorf("duplicate point array %q", da.Name)
	}
	if err := da.Validate(m.NumVertices); err != nil {
		return err
	}
	m.PointData = append(m.PointData, da)
	return nil
}

// Bounds returns the axis aligned bounding box of all vertices
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	b := r3.Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, v := range m.Vertices {
		b.Min.X, b.Max.X = math.Min(b.Min.X, v[0]), math.Max(b.Max.X, v[0])
		b.Min.Y, b.Max.Y = math.Min(b.Min.Y, v[1]), math.Max(b.Max.Y, v[1])
		b.Min.Z, b.Max.Z = math.Min(b.Min.Z, v[2]), math.Max(b.Max.Z, v[2])
	}
	return b
}

// Vertex returns vertex i as a vector
func (m *Mesh) Vertex(i int) r3.Vec {
	v := m.Vertices[i]
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Tetrahedra splits every 3D element into tetrahedra over the mesh vertices.
// Lower dimensional elements contribute nothing.
func (m *Mesh) Tetrahedra() (tets [][4]int) {
	for k, verts := range m.EtoV {
		tets = append(tets, utils.SplitToTets(m.ElementTypes[k], verts)...)
	}
	return
}

// Num3DElements counts the volumetric elements
func (m *Mesh) Num3DElements() (n int) {
	for _, t := range m.ElementTypes {
		if t.GetDimension() == 3 {
			n++
		}
	}
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Vertices: %d\n", m.NumVertices)
	fmt.Printf("  Elements: %d\n", m.NumElements)

	// Count element types
	typeCounts := make(map[utils.ElementType]int)
	for _, t := range m.ElementTypes {
		typeCounts[t]++
	}
	types := make([]utils.ElementType, 0, len(typeCounts))
	for t := range typeCounts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	fmt.Printf("  Element types:\n")
	for _, t := range types {
		fmt.Printf("    %s: %d\n", t, typeCounts[t])
	}

	fmt.Printf("  Point arrays:\n")
	for _, da := range m.PointData {
		fmt.Printf("    %s (%s, %d components)\n", da.Name, da.Attribute, da.NumComponents)
	}
	b := m.Bounds()
	fmt.Printf("  Bounds: [%g, %g] x [%g, %g] x [%g, %g]\n",
		b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z)
}
