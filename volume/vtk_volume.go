package volume

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/vtk"
)

// ReadVTK reads a legacy STRUCTURED_POINTS dataset. The first point array
// becomes the volume's scalars; any others are dropped.
func ReadVTK(r io.Reader) (*Volume, error) {
	s := vtk.NewScanner(r)
	h, err := s.ReadHeader()
	if err != nil {
		return nil, err
	}
	if h.Dataset != "STRUCTURED_POINTS" {
		return nil, fmt.Errorf("unsupported dataset %s, expected STRUCTURED_POINTS", h.Dataset)
	}
	var (
		v        = &Volume{Name: h.Title}
		nTuples  int
		inPoints bool
		haveDims bool
	)
	v.Spacing = [3]float64{1, 1, 1}

	readTriple := func(fields []string) (t [3]float64, err error) {
		if len(fields) != 4 {
			return t, fmt.Errorf("%s: expected 3 values", fields[0])
		}
		for a := 0; a < 3; a++ {
			if t[a], err = strconv.ParseFloat(fields[a+1], 64); err != nil {
				return t, fmt.Errorf("%s: %v", fields[0], err)
			}
		}
		return
	}
	keep := func(da *utils.DataArray) {
		if inPoints && v.Scalars == nil {
			v.Scalars = da
		}
	}

	for {
		fields, err := s.NextKeywordLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch keyword := strings.ToUpper(fields[0]); keyword {
		case "DIMENSIONS":
			if len(fields) != 4 {
				return nil, fmt.Errorf("DIMENSIONS: expected 3 values")
			}
			for a := 0; a < 3; a++ {
				if v.Dimensions[a], err = s.Atoi(keyword, fields[a+1]); err != nil {
					return nil, err
				}
			}
			if _, err = vtk.MulCount(v.Dimensions[:]...); err != nil {
				return nil, fmt.Errorf("DIMENSIONS: %w", err)
			}
			haveDims = true
		case "ORIGIN":
			if v.Origin, err = readTriple(fields); err != nil {
				return nil, err
			}
		case "SPACING", "ASPECT_RATIO":
			if v.Spacing, err = readTriple(fields); err != nil {
				return nil, err
			}
		case "POINT_DATA", "CELL_DATA":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%s: missing count", keyword)
			}
			if nTuples, err = s.Atoi(keyword, fields[1]); err != nil {
				return nil, err
			}
			inPoints = keyword == "POINT_DATA"
			if inPoints && haveDims && nTuples != v.NumPoints() {
				return nil, fmt.Errorf("POINT_DATA %d does not match dimensions %v", nTuples, v.Dimensions)
			}
		case "SCALARS":
			if len(fields) < 3 {
				return nil, fmt.Errorf("SCALARS: expected name and data type")
			}
			nComp := 1
			if len(fields) > 3 {
				if nComp, err = s.Atoi(keyword, fields[3]); err != nil {
					return nil, err
				}
			}
			lut, err := s.NextKeywordLine()
			if err != nil || strings.ToUpper(lut[0]) != "LOOKUP_TABLE" {
				return nil, fmt.Errorf("SCALARS %s: expected LOOKUP_TABLE", fields[1])
			}
			da, err := readArray(s, fields[1], fields[2], utils.ScalarsAttribute, nComp, nTuples)
			if err != nil {
				return nil, err
			}
			keep(da)
		case "VECTORS", "NORMALS":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%s: expected name and data type", keyword)
			}
			da, err := readArray(s, fields[1], fields[2], utils.VectorsAttribute, 3, nTuples)
			if err != nil {
				return nil, err
			}
			keep(da)
		case "FIELD":
			if len(fields) < 3 {
				return nil, fmt.Errorf("FIELD: expected name and array count")
			}
			nArrays, err := s.Atoi(keyword, fields[2])
			if err != nil {
				return nil, err
			}
			for i := 0; i < nArrays; i++ {
				line, err := s.NextKeywordLine()
				if err != nil {
					return nil, fmt.Errorf("FIELD %s: %w", fields[1], err)
				}
				if len(line) < 4 {
					return nil, fmt.Errorf("FIELD %s: invalid array line %q", fields[1], strings.Join(line, " "))
				}
				nComp, err := s.Atoi(keyword, line[1])
				if err != nil {
					return nil, err
				}
				n, err := s.Atoi(keyword, line[2])
				if err != nil {
					return nil, err
				}
				da, err := readArray(s, line[0], line[3], utils.FieldAttribute, nComp, n)
				if err != nil {
					return nil, err
				}
				if n == nTuples {
					keep(da)
				}
			}
		case "LOOKUP_TABLE":
			if len(fields) < 3 {
				return nil, fmt.Errorf("LOOKUP_TABLE: expected name and size")
			}
			n, err := s.Atoi(keyword, fields[2])
			if err != nil {
				return nil, err
			}
			dt := vtk.Float
			if s.Format == vtk.Binary {
				dt = vtk.UnsignedChar
			}
			if n, err = vtk.MulCount(4, n); err != nil {
				return nil, fmt.Errorf("LOOKUP_TABLE: %w", err)
			}
			if _, err = s.ReadFloats(n, dt); err != nil {
				return nil, err
			}
		case "METADATA":
			if err = s.SkipBlock(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("line %d: unexpected keyword %q", s.Line(), fields[0])
		}
	}
	if !haveDims {
		return nil, fmt.Errorf("missing DIMENSIONS")
	}
	return v, nil
}

func readArray(s *vtk.Scanner, name, dtName string, attr utils.AttributeType, nComp, nTuples int) (*utils.DataArray, error) {
	dt, err := vtk.ParseDataType(dtName)
	if err != nil {
		return nil, err
	}
	n, err := vtk.MulCount(nComp, nTuples)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", attr, name, err)
	}
	vals, err := s.ReadFloats(n, dt)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", attr, name, err)
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return &utils.DataArray{Name: name, Attribute: attr, NumComponents: nComp, Values: vals}, nil
}

// WriteVTK writes v as a legacy STRUCTURED_POINTS dataset
func WriteVTK(w io.Writer, v *Volume, format vtk.Format) error {
	vw := vtk.NewWriter(w, format)
	vw.WriteHeader(v.Name, "STRUCTURED_POINTS")
	vw.Printf("DIMENSIONS %d %d %d\n", v.Dimensions[0], v.Dimensions[1], v.Dimensions[2])
	vw.Printf("ORIGIN %v %v %v\n", v.Origin[0], v.Origin[1], v.Origin[2])
	vw.Printf("SPACING %v %v %v\n", v.Spacing[0], v.Spacing[1], v.Spacing[2])
	if da := v.Scalars; da != nil {
		name := strings.ReplaceAll(strings.ReplaceAll(da.Name, "%", "%25"), " ", "%20")
		vw.Printf("POINT_DATA %d\n", v.NumPoints())
		switch {
		case da.NumComponents == 3 && da.Attribute == utils.VectorsAttribute:
			vw.Printf("VECTORS %s double\n", name)
		case da.NumComponents <= 4:
			vw.Printf("SCALARS %s double %d\nLOOKUP_TABLE default\n", name, da.NumComponents)
		default:
			vw.Printf("FIELD FieldData 1\n%s %d %d double\n", name, da.NumComponents, da.NumTuples())
		}
		vw.WriteDoubles(da.Values, da.NumComponents)
	}
	return vw.Flush()
}
