package volume

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nirfast/mesh2image/grid"
	"github.com/nirfast/mesh2image/mesh"
	"github.com/nirfast/mesh2image/pipeline"
	"github.com/nirfast/mesh2image/resample"
	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/vtk"
)

var _ pipeline.Registrar = (*FileRegistrar)(nil)

func testVolume(nComp int) *Volume {
	v := &Volume{
		Name: "mua map",
		Geometry: grid.Geometry{
			Origin:     [3]float64{-12.5, 3, 0.25},
			Spacing:    [3]float64{0.5, 0.75, 2},
			Dimensions: [3]int{4, 3, 2},
		},
	}
	v.Scalars = utils.NewDataArray(v.Name, nComp, v.NumPoints())
	for i := range v.Scalars.Values {
		v.Scalars.Values[i] = 0.001*float64(i) - 0.01
	}
	return v
}

func TestVolumeRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, ext := range []string{".vtk", ".nrrd"} {
		for _, nComp := range []int{1, 3} {
			src := testVolume(nComp)
			path := "/out/vol" + ext
			require.NoError(t, Write(fs, path, src))
			got, err := Read(fs, path)
			require.NoError(t, err, ext)
			assert.Equal(t, src.Name, got.Name, ext)
			assert.Equal(t, src.Geometry, got.Geometry, ext)
			require.NotNil(t, got.Scalars)
			assert.Equal(t, nComp, got.Scalars.NumComponents, ext)
			assert.Equal(t, src.Scalars.Values, got.Scalars.Values, ext)
		}
	}
}

func TestVolumeVTKASCII(t *testing.T) {
	src := testVolume(1)
	var buf bytes.Buffer
	require.NoError(t, WriteVTK(&buf, src, vtk.ASCII))
	assert.Contains(t, buf.String(), "SCALARS mua%20map double 1\n")
	got, err := ReadVTK(&buf)
	require.NoError(t, err)
	assert.Equal(t, src.Geometry, got.Geometry)
	assert.Equal(t, "mua map", got.Scalars.Name)
	assert.Equal(t, src.Scalars.Values, got.Scalars.Values)
}

func TestReadVTKStructuredPoints(t *testing.T) {
	content := `# vtk DataFile Version 2.0
MRI
ASCII
DATASET STRUCTURED_POINTS
DIMENSIONS 2 2 1
ASPECT_RATIO 1 1 3
ORIGIN 0 0 -5
POINT_DATA 4
SCALARS ImageScalars unsigned_char
LOOKUP_TABLE default
0 10 20 255
SCALARS second float
LOOKUP_TABLE default
1 1 1 1
`
	v, err := ReadVTK(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "MRI", v.Name)
	assert.Equal(t, [3]int{2, 2, 1}, v.Dimensions)
	assert.Equal(t, [3]float64{1, 1, 3}, v.Spacing)
	assert.Equal(t, [3]float64{0, 0, -5}, v.Origin)
	require.NotNil(t, v.Scalars)
	assert.Equal(t, "ImageScalars", v.Scalars.Name)
	assert.Equal(t, []float64{0, 10, 20, 255}, v.Scalars.Values)

	_, err = ReadVTK(strings.NewReader(strings.Replace(content, "POINT_DATA 4", "POINT_DATA 5", 1)))
	assert.ErrorContains(t, err, "does not match")
	_, err = ReadVTK(strings.NewReader(strings.Replace(content, "DIMENSIONS 2 2 1", "DIMENSIONS 3000000000 3000000000 3000000000", 1)))
	assert.ErrorContains(t, err, "overflows")
	_, err = ReadVTK(strings.NewReader(strings.Replace(content, "POINT_DATA 4", "FIELD f 1\nbig 1 9000000000 float", 1)))
	assert.ErrorContains(t, err, "invalid number")
	_, err = ReadVTK(strings.NewReader(strings.Replace(content, "STRUCTURED_POINTS", "UNSTRUCTURED_GRID", 1)))
	assert.ErrorContains(t, err, "expected STRUCTURED_POINTS")
}

func TestReadNRRD(t *testing.T) {
	header := `NRRD0004
# comment
type: short
dimension: 3
space: left-posterior-superior
sizes: 2 1 2
space directions: (0.8,0,0) (0,0.8,0) (0,0,-1.5)
kinds: domain domain domain
endian: big
encoding: raw
space origin: (10, -20, 30)
origin_key:=ignored

`
	var payload bytes.Buffer
	for _, v := range []int16{-3, 7, 1000, 0} {
		require.NoError(t, binary.Write(&payload, binary.BigEndian, v))
	}
	v, err := ReadNRRD(io2reader(header, payload.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 1, 2}, v.Dimensions)
	assert.Equal(t, [3]float64{0.8, 0.8, 1.5}, v.Spacing)
	assert.Equal(t, [3]float64{10, -20, 30}, v.Origin)
	assert.Equal(t, []float64{-3, 7, 1000, 0}, v.Scalars.Values)

	ascii := strings.NewReader("NRRD0001\ntype: float\ndimension: 3\nsizes: 1 1 2\nspacings: 2 2 2\nencoding: ascii\n\n1.5\n-2\n")
	v, err = ReadNRRD(ascii)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{2, 2, 2}, v.Spacing)
	assert.Equal(t, []float64{1.5, -2}, v.Scalars.Values)

	testCases := []struct {
		name, content, errMsg string
	}{
		{"not nrrd", "P6\n", "not a NRRD"},
		{"detached", "NRRD0004\ntype: double\ndimension: 3\nsizes: 1 1 1\ndata file: x.raw\n\n", "detached"},
		{"oblique", "NRRD0004\ntype: double\ndimension: 3\nsizes: 1 1 1\nencoding: raw\n" +
			"space directions: (1,1,0) (0,1,0) (0,0,1)\n\n", "axis aligned"},
		{"gzip", "NRRD0004\ntype: double\ndimension: 3\nsizes: 1 1 1\nencoding: gzip\n\n", "encoding"},
		{"2D", "NRRD0004\ntype: double\ndimension: 2\nsizes: 1 1\nencoding: raw\n\n", "dimension"},
		{"overflowing sizes", "NRRD0004\ntype: double\ndimension: 3\nsizes: 4000000000 4000000000 4000000000\nencoding: raw\n\n", "overflows"},
		{"huge sizes short payload", "NRRD0004\ntype: double\ndimension: 3\nsizes: 100000 100000 10\nencoding: raw\n\n1234", "reading"},
		{"huge sizes short ascii", "NRRD0004\ntype: float\ndimension: 3\nsizes: 100000 100000 10\nencoding: ascii\n\n1 2\n", "unexpected EOF"},
		{"short payload", "NRRD0004\ntype: double\ndimension: 3\nsizes: 2 1 1\nencoding: raw\n\n1234", "reading"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadNRRD(strings.NewReader(tc.content))
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func io2reader(header string, payload []byte) *bytes.Reader {
	return bytes.NewReader(append([]byte(header), payload...))
}

func TestParseVectors(t *testing.T) {
	vecs, err := parseVectors("none (1, 0,0)  (0,2.5,0) (0,0,-1)")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{nil, {1, 0, 0}, {0, 2.5, 0}, {0, 0, -1}}, vecs)
	_, err = parseVectors("(1,0,0")
	assert.Error(t, err)
	_, err = parseVectors("[1,0,0]")
	assert.Error(t, err)
}

func TestWriteValidation(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := testVolume(1)
	v.Scalars.Values = v.Scalars.Values[1:]
	assert.Error(t, Write(fs, "/bad.vtk", v))

	v = testVolume(1)
	v.Spacing[1] = 0
	assert.Error(t, Write(fs, "/bad.vtk", v))

	assert.ErrorContains(t, Write(fs, "/bad.png", testVolume(1)), "unsupported")

	_, err := Read(fs, "/missing.nrrd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRegistrar(t *testing.T) {
	fs := afero.NewMemMapFs()
	msh := mesh.NewBoxTetMesh([3]float64{0, 0, 0}, [3]float64{4, 4, 4}, 2).
		WithPointField("absorption", utils.ScalarsAttribute, 1, func(x, y, z float64) []float64 {
			return []float64{x}
		}).
		WithPointField("velocity", utils.VectorsAttribute, 3, func(x, y, z float64) []float64 {
			return []float64{x, y, z}
		})
	ref := &grid.Geometry{
		Origin:     [3]float64{0.5, 0.5, 0.5},
		Spacing:    [3]float64{1, 1, 1},
		Dimensions: [3]int{4, 4, 4},
	}
	fields, err := resample.Resample(context.Background(), msh, grid.FromReference(ref))
	require.NoError(t, err)

	reg := &FileRegistrar{Fs: fs, Dir: "/results", Prefix: "head", Ext: ".nrrd"}
	for _, name := range []string{"absorption", "velocity"} {
		require.NoError(t, reg.Register(fields[name]))
	}
	assert.Equal(t, []string{"/results/head_absorption.nrrd", "/results/head_velocity.nrrd"}, reg.Written)

	abs, err := Read(fs, "/results/head_absorption.nrrd")
	require.NoError(t, err)
	// Files are placed in world space, not in the canonical frame
	assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, abs.Origin)
	assert.Equal(t, "absorption", abs.Name)
	assert.InDelta(t, 0.5, abs.Scalars.Values[0], 1e-12)
	assert.InDelta(t, 3.5, abs.Scalars.Values[3], 1e-12)

	vel, err := Read(fs, "/results/head_velocity.nrrd")
	require.NoError(t, err)
	assert.Equal(t, 3, vel.Scalars.NumComponents)
	assert.False(t, math.IsNaN(vel.Scalars.Values[0]))

	assert.Equal(t, "/results/head_a_b.vtk", (&FileRegistrar{Dir: "/results", Prefix: "head"}).Path("a/b"))

	reg = &FileRegistrar{Fs: fs, Dir: "/results", Prefix: "head", Paths: map[string]string{
		"absorption": "maps/mua.nrrd",
		"velocity":   "/elsewhere/v.vtk",
	}}
	for _, name := range []string{"absorption", "velocity"} {
		require.NoError(t, reg.Register(fields[name]))
	}
	assert.Equal(t, []string{"/results/maps/mua.nrrd", "/elsewhere/v.vtk"}, reg.Written)
	vel, err = Read(fs, "/elsewhere/v.vtk")
	require.NoError(t, err)
	assert.Equal(t, 3, vel.Scalars.NumComponents)
}
