package mesh

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/vtk"
)

type attributeSection uint8

const (
	datasetSection attributeSection = iota
	pointSection
	cellSection
)

// vtkReader holds the parse state of one legacy unstructured grid
type vtkReader struct {
	s       *vtk.Scanner
	header  *vtk.Header
	msh     *Mesh
	section attributeSection
	nTuples int // tuples per array in the current attribute section

	cells     [][]int
	cellTypes []int
}

// ReadVTK reads a legacy VTK UNSTRUCTURED_GRID (ASCII or BINARY) with all of
// its point attribute arrays. Cell attributes are consumed and dropped.
func ReadVTK(r io.Reader) (*Mesh, error) {
	s := vtk.NewScanner(r)
	h, err := s.ReadHeader()
	if err != nil {
		return nil, err
	}
	if h.Dataset != "UNSTRUCTURED_GRID" {
		return nil, fmt.Errorf("unsupported dataset %s, expected UNSTRUCTURED_GRID", h.Dataset)
	}
	vr := &vtkReader{s: s, header: h, msh: NewMesh()}
	vr.msh.Title = h.Title

	for {
		fields, err := s.NextKeywordLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err = vr.readSection(fields); err != nil {
			return nil, err
		}
	}

	if err := vr.buildElements(); err != nil {
		return nil, err
	}
	return vr.msh, nil
}

func (vr *vtkReader) readSection(fields []string) (err error) {
	keyword := strings.ToUpper(fields[0])
	switch keyword {
	case "POINTS":
		return vr.readPoints(fields)
	case "CELLS":
		return vr.readCells(fields)
	case "CELL_TYPES":
		if len(fields) < 2 {
			return fmt.Errorf("CELL_TYPES: missing count")
		}
		var n int
		if n, err = vr.s.Atoi(keyword, fields[1]); err != nil {
			return
		}
		vr.cellTypes, err = vr.s.ReadInts(n, vtk.Int)
		return
	case "POINT_DATA", "CELL_DATA":
		if len(fields) < 2 {
			return fmt.Errorf("%s: missing count", keyword)
		}
		if vr.nTuples, err = vr.s.Atoi(keyword, fields[1]); err != nil {
			return
		}
		vr.section = cellSection
		if keyword == "POINT_DATA" {
			vr.section = pointSection
			if vr.nTuples != vr.msh.NumVertices {
				return fmt.Errorf("POINT_DATA %d does not match %d points", vr.nTuples, vr.msh.NumVertices)
			}
		}
		return nil
	case "SCALARS":
		return vr.readScalars(fields)
	case "COLOR_SCALARS":
		return vr.readColorScalars(fields)
	case "LOOKUP_TABLE":
		return vr.readLookupTable(fields)
	case "VECTORS", "NORMALS":
		attr := utils.VectorsAttribute
		if keyword == "NORMALS" {
			attr = utils.NormalsAttribute
		}
		return vr.readFixedWidth(fields, attr, 3)
	case "TENSORS":
		return vr.readFixedWidth(fields, utils.TensorsAttribute, 9)
	case "TENSORS6":
		return vr.readFixedWidth(fields, utils.TensorsAttribute, 6)
	case "TEXTURE_COORDINATES":
		return vr.readTextureCoordinates(fields)
	case "FIELD":
		return vr.readField(fields)
	case "METADATA":
		return vr.s.SkipBlock()
	default:
		return fmt.Errorf("line %d: unexpected keyword %q", vr.s.Line(), fields[0])
	}
}

func (vr *vtkReader) readPoints(fields []string) (err error) {
	if len(fields) < 3 {
		return fmt.Errorf("POINTS: expected count and data type")
	}
	var (
		n  int
		dt vtk.DataType
	)
	if n, err = vr.s.Atoi("POINTS", fields[1]); err != nil {
		return
	}
	if dt, err = vtk.ParseDataType(fields[2]); err != nil {
		return
	}
	nCoords, err := vtk.MulCount(3, n)
	if err != nil {
		return fmt.Errorf("POINTS: %w", err)
	}
	coords, err := vr.s.ReadFloats(nCoords, dt)
	if err != nil {
		return err
	}
	vr.msh.Vertices = make([][]float64, n)
	for i := range vr.msh.Vertices {
		vr.msh.Vertices[i] = coords[3*i : 3*i+3 : 3*i+3]
	}
	vr.msh.NumVertices = n
	return nil
}

func (vr *vtkReader) readCells(fields []string) (err error) {
	if len(fields) < 3 {
		return fmt.Errorf("CELLS: expected two counts")
	}
	var n, size int
	if n, err = vr.s.Atoi("CELLS", fields[1]); err != nil {
		return
	}
	if size, err = vr.s.Atoi("CELLS", fields[2]); err != nil {
		return
	}
	if vr.header.Major >= 5 {
		return vr.readOffsetCells(n, size)
	}

	// Legacy layout: each cell is "npts id0 id1 ..."
	list, err := vr.s.ReadInts(size, vtk.Int)
	if err != nil {
		return err
	}
	if n > len(list) {
		return fmt.Errorf("CELLS: %d cells cannot fit in %d connectivity entries", n, len(list))
	}
	vr.cells = make([][]int, n)
	pos := 0
	for i := 0; i < n; i++ {
		if pos >= len(list) {
			return fmt.Errorf("CELLS: list exhausted at cell %d of %d", i, n)
		}
		npts := list[pos]
		if npts < 0 || pos+1+npts > len(list) {
			return fmt.Errorf("CELLS: cell %d overruns the connectivity list", i)
		}
		vr.cells[i] = list[pos+1 : pos+1+npts : pos+1+npts]
		pos += 1 + npts
	}
	if pos != len(list) {
		return fmt.Errorf("CELLS: %d trailing connectivity entries", len(list)-pos)
	}
	return nil
}

// readOffsetCells reads the version 5 layout: OFFSETS then CONNECTIVITY arrays
func (vr *vtkReader) readOffsetCells(nOffsets, nConn int) error {
	readArray := func(name string, n int) ([]int, error) {
		fields, err := vr.s.NextKeywordLine()
		if err != nil {
			return nil, fmt.Errorf("CELLS: missing %s: %w", name, err)
		}
		if strings.ToUpper(fields[0]) != name || len(fields) < 2 {
			return nil, fmt.Errorf("CELLS: expected %s, got %q", name, strings.Join(fields, " "))
		}
		dt, err := vtk.ParseDataType(fields[1])
		if err != nil {
			return nil, err
		}
		return vr.s.ReadInts(n, dt)
	}
	offsets, err := readArray("OFFSETS", nOffsets)
	if err != nil {
		return err
	}
	conn, err := readArray("CONNECTIVITY", nConn)
	if err != nil {
		return err
	}
	if nOffsets == 0 {
		return nil
	}
	vr.cells = make([][]int, nOffsets-1)
	for i := range vr.cells {
		lo, hi := offsets[i], offsets[i+1]
		if lo < 0 || hi < lo || hi > len(conn) {
			return fmt.Errorf("CELLS: invalid offsets [%d,%d) for cell %d", lo, hi, i)
		}
		vr.cells[i] = conn[lo:hi:hi]
	}
	return nil
}

func (vr *vtkReader) nameToken(tok string) string {
	// Names written by VTK 4.2+ percent-encode spaces and other specials
	if name, err := url.PathUnescape(tok); err == nil {
		return name
	}
	return tok
}

func (vr *vtkReader) readScalars(fields []string) (err error) {
	if len(fields) < 3 {
		return fmt.Errorf("SCALARS: expected name and data type")
	}
	var (
		dt    vtk.DataType
		nComp = 1
	)
	if dt, err = vtk.ParseDataType(fields[2]); err != nil {
		return
	}
	if len(fields) > 3 {
		if nComp, err = vr.s.Atoi("SCALARS", fields[3]); err != nil {
			return
		}
	}
	lut, err := vr.s.NextKeywordLine()
	if err != nil {
		return fmt.Errorf("SCALARS %s: missing LOOKUP_TABLE: %w", fields[1], err)
	}
	if strings.ToUpper(lut[0]) != "LOOKUP_TABLE" {
		return fmt.Errorf("SCALARS %s: expected LOOKUP_TABLE, got %q", fields[1], lut[0])
	}
	return vr.readArray(vr.nameToken(fields[1]), utils.ScalarsAttribute, nComp, dt)
}

func (vr *vtkReader) readFixedWidth(fields []string, attr utils.AttributeType, nComp int) error {
	if len(fields) < 3 {
		return fmt.Errorf("%s: expected name and data type", fields[0])
	}
	dt, err := vtk.ParseDataType(fields[2])
	if err != nil {
		return err
	}
	return vr.readArray(vr.nameToken(fields[1]), attr, nComp, dt)
}

func (vr *vtkReader) readTextureCoordinates(fields []string) error {
	if len(fields) < 4 {
		return fmt.Errorf("TEXTURE_COORDINATES: expected name, dimension and data type")
	}
	nComp, err := vr.s.Atoi("TEXTURE_COORDINATES", fields[2])
	if err != nil {
		return err
	}
	dt, err := vtk.ParseDataType(fields[3])
	if err != nil {
		return err
	}
	return vr.readArray(vr.nameToken(fields[1]), utils.FieldAttribute, nComp, dt)
}

// readColorScalars reads nValues components per tuple, stored as unsigned
// char in binary files and as floats in [0,1] in ASCII files.
func (vr *vtkReader) readColorScalars(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("COLOR_SCALARS: expected name and component count")
	}
	nComp, err := vr.s.Atoi("COLOR_SCALARS", fields[2])
	if err != nil {
		return err
	}
	dt := vtk.Float
	if vr.s.Format == vtk.Binary {
		dt = vtk.UnsignedChar
	}
	nVals, err := vtk.MulCount(nComp, vr.nTuples)
	if err != nil {
		return fmt.Errorf("COLOR_SCALARS: %w", err)
	}
	vals, err := vr.s.ReadFloats(nVals, dt)
	if err != nil {
		return err
	}
	if dt == vtk.UnsignedChar {
		for i := range vals {
			vals[i] /= 255
		}
	}
	return vr.keep(&utils.DataArray{
		Name:          vr.nameToken(fields[1]),
		Attribute:     utils.ScalarsAttribute,
		NumComponents: nComp,
		Values:        vals,
	})
}

// readLookupTable consumes a standalone RGBA table definition
func (vr *vtkReader) readLookupTable(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("LOOKUP_TABLE: expected name and size")
	}
	n, err := vr.s.Atoi("LOOKUP_TABLE", fields[2])
	if err != nil {
		return err
	}
	dt := vtk.Float
	if vr.s.Format == vtk.Binary {
		dt = vtk.UnsignedChar
	}
	if n, err = vtk.MulCount(4, n); err != nil {
		return fmt.Errorf("LOOKUP_TABLE: %w", err)
	}
	_, err = vr.s.ReadFloats(n, dt)
	return err
}

func (vr *vtkReader) readField(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("FIELD: expected name and array count")
	}
	nArrays, err := vr.s.Atoi("FIELD", fields[2])
	if err != nil {
		return err
	}
	for i := 0; i < nArrays; i++ {
		line, err := vr.s.NextKeywordLine()
		if err != nil {
			return fmt.Errorf("FIELD %s: array %d: %w", fields[1], i, err)
		}
		if strings.ToUpper(line[0]) == "METADATA" {
			if err = vr.s.SkipBlock(); err != nil {
				return err
			}
			i--
			continue
		}
		if len(line) < 4 {
			return fmt.Errorf("FIELD %s: invalid array line %q", fields[1], strings.Join(line, " "))
		}
		nComp, err := vr.s.Atoi("FIELD", line[1])
		if err != nil {
			return err
		}
		nTuples, err := vr.s.Atoi("FIELD", line[2])
		if err != nil {
			return err
		}
		dt, err := vtk.ParseDataType(line[3])
		if err != nil {
			return err
		}
		nVals, err := vtk.MulCount(nComp, nTuples)
		if err != nil {
			return fmt.Errorf("FIELD %s: %w", fields[1], err)
		}
		vals, err := vr.s.ReadFloats(nVals, dt)
		if err != nil {
			return err
		}
		// Dataset level field data and mismatched arrays are not point fields
		if vr.section != pointSection || nTuples != vr.nTuples {
			continue
		}
		if err = vr.keep(&utils.DataArray{
			Name:          vr.nameToken(line[0]),
			Attribute:     utils.FieldAttribute,
			NumComponents: nComp,
			Values:        vals,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (vr *vtkReader) readArray(name string, attr utils.AttributeType, nComp int, dt vtk.DataType) error {
	if vr.section == datasetSection {
		return fmt.Errorf("%s %s: attribute outside POINT_DATA/CELL_DATA", attr, name)
	}
	nVals, err := vtk.MulCount(nComp, vr.nTuples)
	if err != nil {
		return fmt.Errorf("%s %s: %w", attr, name, err)
	}
	vals, err := vr.s.ReadFloats(nVals, dt)
	if err != nil {
		return fmt.Errorf("%s %s: %w", attr, name, err)
	}
	return vr.keep(&utils.DataArray{
		Name:          name,
		Attribute:     attr,
		NumComponents: nComp,
		Values:        vals,
	})
}

func (vr *vtkReader) keep(da *utils.DataArray) error {
	if vr.section != pointSection {
		return nil
	}
	return vr.msh.addPointArray(da)
}

// buildElements pairs connectivity with cell types and keeps volumetric cells
func (vr *vtkReader) buildElements() error {
	if len(vr.cells) != len(vr.cellTypes) {
		return fmt.Errorf("%d cells but %d cell types", len(vr.cells), len(vr.cellTypes))
	}
	msh := vr.msh
	msh.EtoV = make([][]int, 0, len(vr.cells))
	msh.ElementTypes = make([]utils.ElementType, 0, len(vr.cells))
	for i, verts := range vr.cells {
		for _, v := range verts {
			if v < 0 || v >= msh.NumVertices {
				return fmt.Errorf("cell %d: node index %d out of range [0,%d)", i, v, msh.NumVertices)
			}
		}
		etype, ok := utils.VTKCellTypeMap[vr.cellTypes[i]]
		if !ok {
			// Quadratic and other non-linear cells are not probed
			continue
		}
		if etype.GetDimension() != 3 {
			continue
		}
		if len(verts) != etype.GetNumNodes() {
			return fmt.Errorf("cell %d: %v expects %d nodes, got %d",
				i, etype, etype.GetNumNodes(), len(verts))
		}
		msh.EtoV = append(msh.EtoV, verts)
		msh.ElementTypes = append(msh.ElementTypes, etype)
	}
	msh.NumElements = len(msh.EtoV)
	return nil
}
