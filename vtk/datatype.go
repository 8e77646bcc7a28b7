package vtk

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DataType is a legacy VTK array element type, as named in the file
type DataType string

const (
	UnsignedChar  DataType = "unsigned_char"
	Char          DataType = "char"
	UnsignedShort DataType = "unsigned_short"
	Short         DataType = "short"
	UnsignedInt   DataType = "unsigned_int"
	Int           DataType = "int"
	UnsignedLong  DataType = "unsigned_long"
	Long          DataType = "long"
	Float         DataType = "float"
	Double        DataType = "double"
	IDType        DataType = "vtkidtype"
	TypeInt64     DataType = "vtktypeint64"
	TypeUInt64    DataType = "vtktypeuint64"
)

// ParseDataType normalises a type token read from a file
func ParseDataType(token string) (DataType, error) {
	dt := DataType(strings.ToLower(token))
	if dt.Size() == 0 {
		return "", fmt.Errorf("unsupported data type %q", token)
	}
	return dt, nil
}

// Size returns the binary width in bytes, 0 for unknown types
func (dt DataType) Size() int {
	switch dt {
	case UnsignedChar, Char:
		return 1
	case UnsignedShort, Short:
		return 2
	case UnsignedInt, Int, Float, IDType:
		return 4
	case UnsignedLong, Long, Double, TypeInt64, TypeUInt64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether values of this type are integral
func (dt DataType) IsInteger() bool {
	return dt != Float && dt != Double && dt.Size() != 0
}

// decode reads one big-endian value of type dt from b
func (dt DataType) decode(b []byte) float64 {
	be := binary.BigEndian
	switch dt {
	case UnsignedChar:
		return float64(b[0])
	case Char:
		return float64(int8(b[0]))
	case UnsignedShort:
		return float64(be.Uint16(b))
	case Short:
		return float64(int16(be.Uint16(b)))
	case UnsignedInt:
		return float64(be.Uint32(b))
	case Int, IDType:
		return float64(int32(be.Uint32(b)))
	case UnsignedLong, TypeUInt64:
		return float64(be.Uint64(b))
	case Long, TypeInt64:
		return float64(int64(be.Uint64(b)))
	case Float:
		return float64(math.Float32frombits(be.Uint32(b)))
	case Double:
		return math.Float64frombits(be.Uint64(b))
	}
	return 0
}

// decodeInt reads one big-endian integer value of type dt from b
func (dt DataType) decodeInt(b []byte) int {
	be := binary.BigEndian
	switch dt {
	case UnsignedChar:
		return int(b[0])
	case Char:
		return int(int8(b[0]))
	case UnsignedShort:
		return int(be.Uint16(b))
	case Short:
		return int(int16(be.Uint16(b)))
	case UnsignedInt:
		return int(be.Uint32(b))
	case Int, IDType:
		return int(int32(be.Uint32(b)))
	case UnsignedLong, TypeUInt64:
		return int(be.Uint64(b))
	case Long, TypeInt64:
		return int(int64(be.Uint64(b)))
	}
	return int(dt.decode(b))
}
