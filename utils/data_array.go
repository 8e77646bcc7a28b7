package utils

import "fmt"

// AttributeType records how a point array was declared in its source file
type AttributeType uint8

const (
	FieldAttribute AttributeType = iota
	ScalarsAttribute
	VectorsAttribute
	NormalsAttribute
	TensorsAttribute
)

func (a AttributeType) String() string {
	return [...]string{"FIELD", "SCALARS", "VECTORS", "NORMALS", "TENSORS"}[a]
}

// DataArray is a named array of tuples, one tuple per point.
// Values are stored tuple-major: tuple i occupies
// Values[i*NumComponents : (i+1)*NumComponents].
type DataArray struct {
	Name          string
	Attribute     AttributeType
	NumComponents int
	Values        []float64
}

func NewDataArray(name string, nComp, nTuples int) *DataArray {
	return &DataArray{
		Name:          name,
		Attribute:     ScalarsAttribute,
		NumComponents: nComp,
		Values:        make([]float64, nComp*nTuples),
	}
}

// NumTuples returns the number of points the array covers
func (da *DataArray) NumTuples() int {
	if da.NumComponents == 0 {
		return 0
	}
	return len(da.Values) / da.NumComponents
}

// Tuple returns a view of the i-th tuple
func (da *DataArray) Tuple(i int) []float64 {
	nc := da.NumComponents
	return da.Values[i*nc : (i+1)*nc]
}

// Validate checks that the array is consistent with nTuples points
func (da *DataArray) Validate(nTuples int) error {
	if da.NumComponents < 0 {
		return fmt.Errorf("array %q: negative component count %d", da.Name, da.NumComponents)
	}
	if len(da.Values) != da.NumComponents*nTuples {
		return fmt.Errorf("array %q: %d values, expected %d components x %d tuples",
			da.Name, len(da.Values), da.NumComponents, nTuples)
	}
	return nil
}
