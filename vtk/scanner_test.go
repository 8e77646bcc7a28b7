package vtk

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeader(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		format  Format
		dataset string
		errMsg  string
	}{
		{
			name:    "ascii unstructured",
			content: "# vtk DataFile Version 3.0\nmesh\nASCII\nDATASET UNSTRUCTURED_GRID\n",
			format:  ASCII,
			dataset: "UNSTRUCTURED_GRID",
		},
		{
			name:    "binary structured points",
			content: "# vtk DataFile Version 5.1\nvol\nBINARY\n\nDATASET structured_points\n",
			format:  Binary,
			dataset: "STRUCTURED_POINTS",
		},
		{
			name:    "bad magic",
			content: "solid stl\n",
			errMsg:  "not a legacy VTK file",
		},
		{
			name:    "bad format",
			content: "# vtk DataFile Version 3.0\nmesh\nXML\nDATASET UNSTRUCTURED_GRID\n",
			errMsg:  "unknown file format",
		},
		{
			name:    "missing dataset",
			content: "# vtk DataFile Version 3.0\nmesh\nASCII\nPOINTS 3 float\n",
			errMsg:  "expected DATASET",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScanner(strings.NewReader(tc.content))
			h, err := s.ReadHeader()
			if tc.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.format, h.Format)
			assert.Equal(t, tc.dataset, h.Dataset)
		})
	}
}

func TestScannerASCIITokensSpanLines(t *testing.T) {
	s := NewScanner(strings.NewReader("1 2\n3\n\n4 5 6\nNEXT 7\n"))
	vals, err := s.ReadFloats(6, Float)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, vals)
	fields, err := s.NextKeywordLine()
	require.NoError(t, err)
	assert.Equal(t, []string{"NEXT", "7"}, fields)
	_, err = s.NextKeywordLine()
	assert.Equal(t, io.EOF, err)

	s = NewScanner(strings.NewReader("1 x\n"))
	_, err = s.ReadInts(2, Int)
	assert.Error(t, err)

	s = NewScanner(strings.NewReader("1 2\n"))
	_, err = s.ReadInts(3, Int)
	assert.Error(t, err)
}

func TestWriterScannerBinaryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Binary)
	w.WriteHeader("roundtrip", "UNSTRUCTURED_GRID")
	w.Printf("POINTS 2 double\n")
	w.WriteDoubles([]float64{0.5, -1, 2, 3, 4.25, 1e-9}, 3)
	w.Printf("CELL_TYPES 2\n")
	w.WriteInts([]int{10, -3}, 1)
	require.NoError(t, w.Flush())

	s := NewScanner(&buf)
	h, err := s.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, Binary, h.Format)
	assert.Equal(t, "roundtrip", h.Title)

	fields, err := s.NextKeywordLine()
	require.NoError(t, err)
	assert.Equal(t, []string{"POINTS", "2", "double"}, fields)
	vals, err := s.ReadFloats(6, Double)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1, 2, 3, 4.25, 1e-9}, vals)

	fields, err = s.NextKeywordLine()
	require.NoError(t, err)
	assert.Equal(t, "CELL_TYPES", fields[0])
	ints, err := s.ReadInts(2, Int)
	require.NoError(t, err)
	assert.Equal(t, []int{10, -3}, ints)
}

func TestWriterASCII(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, ASCII)
	w.WriteDoubles([]float64{1, 2.5, 3}, 2)
	w.WriteInts([]int{4, 5}, 5)
	require.NoError(t, w.Flush())
	assert.Equal(t, "1 2.5\n3\n4 5\n", buf.String())
}

func TestDataType(t *testing.T) {
	dt, err := ParseDataType("Float")
	require.NoError(t, err)
	assert.Equal(t, Float, dt)
	assert.Equal(t, 4, dt.Size())
	assert.False(t, dt.IsInteger())
	assert.True(t, TypeInt64.IsInteger())
	_, err = ParseDataType("bit")
	assert.Error(t, err)

	assert.Equal(t, -2.0, Short.decode([]byte{0xff, 0xfe}))
	assert.Equal(t, 65534.0, UnsignedShort.decode([]byte{0xff, 0xfe}))
	assert.Equal(t, -1, Char.decodeInt([]byte{0xff}))
}

func TestMulCount(t *testing.T) {
	n, err := MulCount(3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, 60, n)
	n, err = MulCount(0, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = MulCount(3, math.MaxInt/2)
	assert.ErrorContains(t, err, "overflows")
	_, err = MulCount(2, -1)
	assert.ErrorContains(t, err, "negative")
}

func TestScannerCorruptCounts(t *testing.T) {
	s := NewScanner(strings.NewReader("1 2 3\n"))
	_, err := s.ReadFloats(4000000000000000000, Double)
	assert.ErrorContains(t, err, "reading value 3 of")

	s = NewScanner(bytes.NewReader(make([]byte, 16)))
	s.Format = Binary
	_, err = s.ReadInts(4000000000000000000, Int)
	assert.ErrorContains(t, err, "reading 4000000000000000000 int values")

	_, err = s.ReadFloats(-1, Float)
	assert.ErrorContains(t, err, "negative")
	_, err = s.ReadFloats(math.MaxInt/4, Double)
	assert.ErrorContains(t, err, "overflows")
}
