package mesh

import (
	"github.com/nirfast/mesh2image/utils"
)

// kuhnTets splits a hex (standard vertex ordering) into six tetrahedra
// around the 0-6 diagonal. Neighbouring hexes split this way are conforming.
var kuhnTets = [6][4]int{
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
	{0, 5, 1, 6},
}

// NewBoxTetMesh builds a tetrahedral mesh of the box [min, max] with n
// divisions per axis. It is used as a fixture across packages.
func NewBoxTetMesh(min, max [3]float64, n int) *Mesh {
	msh := NewMesh()
	msh.Title = "box"
	np := n + 1
	idx := func(i, j, k int) int { return i + np*(j+np*k) }
	for k := 0; k < np; k++ {
		for j := 0; j < np; j++ {
			for i := 0; i < np; i++ {
				msh.Vertices = append(msh.Vertices, []float64{
					min[0] + (max[0]-min[0])*float64(i)/float64(n),
					min[1] + (max[1]-min[1])*float64(j)/float64(n),
					min[2] + (max[2]-min[2])*float64(k)/float64(n),
				})
			}
		}
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				hex := [8]int{
					idx(i, j, k), idx(i+1, j, k), idx(i+1, j+1, k), idx(i, j+1, k),
					idx(i, j, k+1), idx(i+1, j, k+1), idx(i+1, j+1, k+1), idx(i, j+1, k+1),
				}
				for _, tet := range kuhnTets {
					msh.EtoV = append(msh.EtoV, []int{hex[tet[0]], hex[tet[1]], hex[tet[2]], hex[tet[3]]})
					msh.ElementTypes = append(msh.ElementTypes, utils.Tet)
				}
			}
		}
	}
	msh.NumVertices = len(msh.Vertices)
	msh.NumElements = len(msh.EtoV)
	return msh
}

// WithPointField appends a point array whose tuple at each vertex is fn(x, y, z).
// Fixture builder only; loaded meshes are never modified.
func (m *Mesh) WithPointField(name string, attr utils.AttributeType, nComp int,
	fn func(x, y, z float64) []float64) *Mesh {
	da := &utils.DataArray{
		Name:          name,
		Attribute:     attr,
		NumComponents: nComp,
		Values:        make([]float64, 0, nComp*m.NumVertices),
	}
	for _, v := range m.Vertices {
		da.Values = append(da.Values, fn(v[0], v[1], v[2])[:nComp]...)
	}
	if err := m.addPointArray(da); err != nil {
		panic(err)
	}
	return m
}
