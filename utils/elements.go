package utils

// ElementType represents the cell types a probe mesh can carry
type ElementType int

const (
	Unknown ElementType = iota
	// 0D elements
	Point
	// 1D elements
	Line
	// 2D elements
	Triangle
	Quad
	// 3D elements
	Tet
	Voxel
	Hex
	Prism
	Pyramid
)

// String representation of element types
func (e ElementType) String() string {
	names := []string{
		"Unknown",
		"Point",
		"Line",
		"Triangle", "Quad",
		"Tet", "Voxel", "Hex", "Prism", "Pyramid",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Invalid"
}

// GetDimension returns the spatial dimension of the element
func (e ElementType) GetDimension() int {
	switch e {
	case Point:
		return 0
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	case Tet, Voxel, Hex, Prism, Pyramid:
		return 3
	default:
		return -1
	}
}

// GetNumNodes returns the number of nodes for each element type
func (e ElementType) GetNumNodes() int {
	switch e {
	case Point:
		return 1
	case Line:
		return 2
	case Triangle:
		return 3
	case Quad:
		return 4
	case Tet:
		return 4
	case Voxel, Hex:
		return 8
	case Prism:
		return 6
	case Pyramid:
		return 5
	default:
		return 0
	}
}

// VTKCellTypeMap maps VTK cell type identifiers to our ElementType
var VTKCellTypeMap = map[int]ElementType{
	1:  Point,    // VTK_VERTEX
	3:  Line,     // VTK_LINE
	5:  Triangle, // VTK_TRIANGLE
	9:  Quad,     // VTK_QUAD
	10: Tet,      // VTK_TETRA
	11: Voxel,    // VTK_VOXEL
	12: Hex,      // VTK_HEXAHEDRON
	13: Prism,    // VTK_WEDGE
	14: Pyramid,  // VTK_PYRAMID
}

// SplitToTets decomposes a linear 3D cell into tetrahedra that share its
// vertices. The returned connectivity indexes into the global vertex list.
func SplitToTets(elemType ElementType, v []int) (tets [][4]int) {
	switch elemType {
	case Tet:
		return [][4]int{{v[0], v[1], v[2], v[3]}}
	case Voxel:
		// Voxel ordering differs from hex: 2<->3 and 6<->7
		return SplitToTets(Hex, []int{v[0], v[1], v[3], v[2], v[4], v[5], v[7], v[6]})
	case Hex:
		return [][4]int{
			{v[0], v[1], v[3], v[4]},
			{v[1], v[2], v[3], v[6]},
			{v[1], v[4], v[5], v[6]},
			{v[3], v[4], v[6], v[7]},
			{v[1], v[3], v[4], v[6]},
		}
	case Prism:
		return [][4]int{
			{v[0], v[1], v[2], v[3]},
			{v[1], v[2], v[3], v[4]},
			{v[2], v[3], v[4], v[5]},
		}
	case Pyramid:
		return [][4]int{
			{v[0], v[1], v[2], v[4]},
			{v[0], v[2], v[3], v[4]},
		}
	default:
		return nil
	}
}
