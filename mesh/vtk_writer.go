package mesh

import (
	"fmt"
	"io"
	"strings"

	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/vtk"
)

var vtkCellTypeIDs = func() map[utils.ElementType]int {
	ids := make(map[utils.ElementType]int, len(utils.VTKCellTypeMap))
	for id, etype := range utils.VTKCellTypeMap {
		ids[etype] = id
	}
	return ids
}()

func encodeName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "%", "%25"), " ", "%20")
}

// WriteVTK writes m as a legacy version 3.0 UNSTRUCTURED_GRID
func WriteVTK(w io.Writer, m *Mesh, format vtk.Format) error {
	vw := vtk.NewWriter(w, format)
	vw.WriteHeader(m.Title, "UNSTRUCTURED_GRID")

	vw.Printf("POINTS %d double\n", m.NumVertices)
	coords := make([]float64, 0, 3*m.NumVertices)
	for _, v := range m.Vertices {
		coords = append(coords, v[0], v[1], v[2])
	}
	vw.WriteDoubles(coords, 3)

	var (
		list  []int
		types = make([]int, len(m.EtoV))
	)
	for k, verts := range m.EtoV {
		id, ok := vtkCellTypeIDs[m.ElementTypes[k]]
		if !ok {
			return fmt.Errorf("element %d: no VTK cell type for %v", k, m.ElementTypes[k])
		}
		types[k] = id
		list = append(list, len(verts))
		list = append(list, verts...)
	}
	vw.Printf("CELLS %d %d\n", len(m.EtoV), len(list))
	if len(m.EtoV) > 0 {
		vw.WriteInts(list, 0)
	}
	vw.Printf("CELL_TYPES %d\n", len(types))
	if len(types) > 0 {
		vw.WriteInts(types, 1)
	}

	if len(m.PointData) == 0 {
		return vw.Flush()
	}
	vw.Printf("POINT_DATA %d\n", m.NumVertices)
	var fieldArrays []*utils.DataArray
	for _, da := range m.PointData {
		name := encodeName(da.Name)
		switch {
		case da.Attribute == utils.VectorsAttribute && da.NumComponents == 3:
			vw.Printf("VECTORS %s double\n", name)
		case da.Attribute == utils.NormalsAttribute && da.NumComponents == 3:
			vw.Printf("NORMALS %s double\n", name)
		case da.Attribute == utils.TensorsAttribute && da.NumComponents == 9:
			vw.Printf("TENSORS %s double\n", name)
		case da.Attribute == utils.FieldAttribute:
			fieldArrays = append(fieldArrays, da)
			continue
		default:
			vw.Printf("SCALARS %s double %d\nLOOKUP_TABLE default\n", name, da.NumComponents)
		}
		vw.WriteDoubles(da.Values, da.NumComponents)
	}
	if len(fieldArrays) > 0 {
		vw.Printf("FIELD FieldData %d\n", len(fieldArrays))
		for _, da := range fieldArrays {
			vw.Printf("%s %d %d double\n", encodeName(da.Name), da.NumComponents, da.NumTuples())
			vw.WriteDoubles(da.Values, da.NumComponents)
		}
	}
	return vw.Flush()
}
