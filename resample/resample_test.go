package resample

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nirfast/mesh2image/grid"
	"github.com/nirfast/mesh2image/mesh"
	"github.com/nirfast/mesh2image/utils"
)

func linear(x, y, z float64) float64 { return 0.5 + x + 2*y - 3*z }

func unitBoxMesh() *mesh.Mesh {
	return mesh.NewBoxTetMesh([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, 3).
		WithPointField("absorption", utils.ScalarsAttribute, 1, func(x, y, z float64) []float64 {
			return []float64{linear(x, y, z)}
		}).
		WithPointField("velocity", utils.VectorsAttribute, 3, func(x, y, z float64) []float64 {
			return []float64{x, y, z}
		})
}

func keys(fields map[string]*Field) (names []string) {
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func TestResampleDerivedGrid(t *testing.T) {
	ref := &grid.Geometry{
		Origin:     [3]float64{0.05, 0.05, 0.05},
		Spacing:    [3]float64{0.1, 0.1, 0.1},
		Dimensions: [3]int{10, 10, 10},
	}
	physical := *ref
	g := grid.FromReference(ref)

	fields, err := Resample(context.Background(), unitBoxMesh(), g)
	require.NoError(t, err)
	require.Equal(t, []string{"absorption", "velocity"}, keys(fields))

	abs, vel := fields["absorption"], fields["velocity"]
	assert.Equal(t, 1, abs.NumComponents)
	assert.Len(t, abs.Values, 1000)
	assert.Equal(t, 3, vel.NumComponents)
	assert.Len(t, vel.Values, 3000)

	// Both the caller's reference and the output report the unit frame
	for _, geom := range []grid.Geometry{*ref, g.Geometry, abs.Geometry, vel.Geometry} {
		assert.Equal(t, [3]float64{0, 0, 0}, geom.Origin)
		assert.Equal(t, [3]float64{1, 1, 1}, geom.Spacing)
		assert.Equal(t, [3]int{10, 10, 10}, geom.Dimensions)
	}
	assert.Equal(t, physical, abs.Physical)

	// Linear fields are reproduced exactly at the physical sample points
	for n := 0; n < abs.NumPoints(); n++ {
		p := abs.Physical.Point(n)
		require.InDelta(t, linear(p.X, p.Y, p.Z), abs.Values[n], 1e-10, "point %d", n)
		require.InDeltaSlice(t, []float64{p.X, p.Y, p.Z}, vel.Tuple(n), 1e-10)
	}
}

func TestResampleConstantField(t *testing.T) {
	const c = 2.5
	msh := mesh.NewBoxTetMesh([3]float64{-2, 0, 1}, [3]float64{2, 3, 4}, 4).
		WithPointField("mus", utils.ScalarsAttribute, 1, func(x, y, z float64) []float64 {
			return []float64{c}
		})
	g, err := grid.FromBounds(msh.Bounds(), 0.25)
	require.NoError(t, err)

	fields, err := Resample(context.Background(), msh, g)
	require.NoError(t, err)
	mus := fields["mus"]
	require.NotNil(t, mus)
	assert.Equal(t, g.NumPoints(), mus.NumPoints())
	// Synthesized grids keep their world placement
	assert.Equal(t, mus.Physical, mus.Geometry)
	assert.Equal(t, [3]float64{-2, 0, 1}, mus.Geometry.Origin)
	for n, v := range mus.Values {
		require.InDelta(t, c, v, 1e-12, "point %d", n)
	}
	lo, hi := mus.Range(0)
	assert.InDelta(t, c, lo, 1e-12)
	assert.InDelta(t, c, hi, 1e-12)
}

func TestResampleOutsidePoints(t *testing.T) {
	msh := mesh.NewBoxTetMesh([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, 2).
		WithPointField("one", utils.ScalarsAttribute, 1, func(x, y, z float64) []float64 {
			return []float64{1}
		})
	ref := &grid.Geometry{
		Origin:     [3]float64{-1, -1, -1},
		Spacing:    [3]float64{1, 1, 1},
		Dimensions: [3]int{4, 4, 4},
	}
	g := grid.FromReference(ref)
	loc := NewLocator(msh)
	arrays, err := probe(context.Background(), loc, msh, g, newOptions(nil), &progressMeter{})
	require.NoError(t, err)
	require.Len(t, arrays, 2)
	one, mask := arrays[0], arrays[1]
	assert.Equal(t, ValidPointMaskName, mask.Name)

	for n := 0; n < g.NumPoints(); n++ {
		p := g.Point(n)
		in := p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1 && p.Z >= 0 && p.Z <= 1
		if in {
			assert.Equal(t, 1.0, mask.Values[n], "point %v", p)
			assert.InDelta(t, 1.0, one.Values[n], 1e-12, "point %v", p)
		} else {
			assert.Equal(t, 0.0, mask.Values[n], "point %v", p)
			assert.Equal(t, 0.0, one.Values[n], "point %v", p)
		}
	}
}

func TestResampleZeroFieldMesh(t *testing.T) {
	msh := mesh.NewBoxTetMesh([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, 1)
	g, err := grid.FromBounds(msh.Bounds(), 0.2)
	require.NoError(t, err)
	fields, err := Resample(context.Background(), msh, g)
	require.NoError(t, err)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func TestResampleHexMesh(t *testing.T) {
	msh := mesh.NewMesh()
	msh.Vertices = [][]float64{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	msh.EtoV = [][]int{{0, 1, 2, 3, 4, 5, 6, 7}}
	msh.ElementTypes = []utils.ElementType{utils.Hex}
	msh.NumVertices, msh.NumElements = 8, 1
	msh.WithPointField("f", utils.ScalarsAttribute, 1, func(x, y, z float64) []float64 {
		return []float64{linear(x, y, z)}
	})

	g, err := grid.FromBounds(msh.Bounds(), 0.25)
	require.NoError(t, err)
	fields, err := Resample(context.Background(), msh, g)
	require.NoError(t, err)
	f := fields["f"]
	require.NotNil(t, f)
	for n := range f.Values {
		p := f.Physical.Point(n)
		require.InDelta(t, linear(p.X, p.Y, p.Z), f.Values[n], 1e-10)
	}
}

func TestResampleErrors(t *testing.T) {
	ctx := context.Background()
	box := mesh.NewBoxTetMesh([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, 1)
	g := func() *grid.SamplingGrid {
		sg, err := grid.FromBounds(box.Bounds(), 0.5)
		require.NoError(t, err)
		return sg
	}

	_, err := Resample(ctx, nil, g())
	assert.ErrorIs(t, err, ErrNoGeometry)

	_, err = Resample(ctx, mesh.NewMesh(), g())
	assert.ErrorIs(t, err, ErrNoGeometry)

	cloud := mesh.NewMesh()
	cloud.Vertices = [][]float64{{0, 0, 0}, {1, 1, 1}}
	cloud.NumVertices = 2
	_, err = Resample(ctx, cloud, g())
	assert.ErrorIs(t, err, ErrNoGeometry)

	flat := mesh.NewMesh()
	flat.Vertices = [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	flat.EtoV = [][]int{{0, 1, 2, 3}}
	flat.ElementTypes = []utils.ElementType{utils.Tet}
	flat.NumVertices, flat.NumElements = 4, 1
	_, err = Resample(ctx, flat, g())
	assert.ErrorIs(t, err, ErrNoGeometry)

	empty := grid.FromReference(&grid.Geometry{Spacing: [3]float64{1, 1, 1}, Dimensions: [3]int{4, 0, 4}})
	_, err = Resample(ctx, box, empty)
	assert.ErrorIs(t, err, ErrNoOutput)
	_, err = Resample(ctx, box, nil)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestResampleExclusion(t *testing.T) {
	ctx := context.Background()
	msh := unitBoxMesh().
		WithPointField(DefaultBackgroundName, utils.ScalarsAttribute, 1, func(x, y, z float64) []float64 {
			return []float64{7}
		})
	ref := func() *grid.Geometry {
		return &grid.Geometry{Spacing: [3]float64{0.5, 0.5, 0.5}, Dimensions: [3]int{3, 3, 3}}
	}

	t.Run("DerivedDropsDefaultBackground", func(t *testing.T) {
		fields, err := Resample(ctx, msh, grid.FromReference(ref()))
		require.NoError(t, err)
		assert.Equal(t, []string{"absorption", "velocity"}, keys(fields))
	})

	t.Run("SynthesizedKeepsEverything", func(t *testing.T) {
		g, err := grid.FromBounds(msh.Bounds(), 0.5)
		require.NoError(t, err)
		fields, err := Resample(ctx, msh, g)
		require.NoError(t, err)
		assert.Equal(t, []string{DefaultBackgroundName, "absorption", "velocity"}, keys(fields))
	})

	t.Run("BackgroundPassThroughDropped", func(t *testing.T) {
		g := grid.FromReference(ref())
		g.Background = utils.NewDataArray("MRI", 1, g.NumPoints())
		fields, err := Resample(ctx, unitBoxMesh(), g)
		require.NoError(t, err)
		assert.Equal(t, []string{"absorption", "velocity"}, keys(fields))
	})

	t.Run("BackgroundOnSynthesizedGridIsCopied", func(t *testing.T) {
		g, err := grid.FromBounds(msh.Bounds(), 0.5)
		require.NoError(t, err)
		g.Background = utils.NewDataArray("MRI", 1, g.NumPoints())
		g.Background.Values[0] = 42
		fields, err := Resample(ctx, unitBoxMesh(), g)
		require.NoError(t, err)
		require.Contains(t, fields, "MRI")
		assert.Equal(t, 42.0, fields["MRI"].Values[0])
		fields["MRI"].Values[0] = 0
		assert.Equal(t, 42.0, g.Background.Values[0])
	})

	t.Run("ConfiguredNames", func(t *testing.T) {
		fields, err := Resample(ctx, msh, grid.FromReference(ref()), WithExclusions("velocity"))
		require.NoError(t, err)
		assert.Equal(t, []string{"absorption"}, keys(fields))
	})
}

func TestExclusionPolicy(t *testing.T) {
	p := DefaultExclusionPolicy()
	assert.True(t, p.Excludes(ValidPointMaskName))
	assert.False(t, p.Excludes(DefaultBackgroundName))
	p.Add("b", "a")
	assert.Equal(t, []string{"a", "b", ValidPointMaskName}, p.Names())

	kept := p.Apply([]*utils.DataArray{{Name: "x"}, {Name: "a"}, {Name: "y"}})
	require.Len(t, kept, 2)
	assert.Equal(t, "x", kept[0].Name)
	assert.Equal(t, "y", kept[1].Name)

	c := p.clone()
	c.Add("z")
	assert.False(t, p.Excludes("z"))
}

func TestResampleWorkersAgree(t *testing.T) {
	msh := unitBoxMesh()
	var results []map[string]*Field
	for _, workers := range []int{1, 3, 8} {
		g, err := grid.FromBounds(r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, 0.07)
		require.NoError(t, err)
		fields, err := Resample(context.Background(), msh, g, WithWorkers(workers))
		require.NoError(t, err)
		results = append(results, fields)
	}
	for _, fields := range results[1:] {
		for name, f := range results[0] {
			assert.Equal(t, f.Values, fields[name].Values, name)
		}
	}
}

func TestResampleProgress(t *testing.T) {
	var reports []float64
	g, err := grid.FromBounds(r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, 0.05)
	require.NoError(t, err)
	_, err = Resample(context.Background(), unitBoxMesh(), g,
		WithWorkers(4),
		WithProgress(func(f float64) { reports = append(reports, f) }))
	require.NoError(t, err)
	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
	assert.Equal(t, 1.0, reports[len(reports)-1])
	assert.LessOrEqual(t, reports[0], 1.0)
}

func TestResampleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ref := &grid.Geometry{
		Origin:     [3]float64{0.1, 0.1, 0.1},
		Spacing:    [3]float64{0.2, 0.2, 0.2},
		Dimensions: [3]int{5, 5, 5},
	}
	fields, err := Resample(ctx, unitBoxMesh(), grid.FromReference(ref))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, fields)
	// Nothing was canonicalized
	assert.Equal(t, [3]float64{0.2, 0.2, 0.2}, ref.Spacing)
}

func TestLocator(t *testing.T) {
	msh := mesh.NewBoxTetMesh([3]float64{0, 0, 0}, [3]float64{2, 2, 2}, 2)
	loc := NewLocator(msh)
	assert.Equal(t, 48, loc.NumCells())
	assert.Equal(t, 0, loc.NumSkipped())

	verts, w, ok := loc.Find(r3.Vec{X: 0.3, Y: 1.7, Z: 0.9})
	require.True(t, ok)
	var sum float64
	var p r3.Vec
	for i, n := range verts {
		sum += w[i]
		p = r3.Add(p, r3.Scale(w[i], msh.Vertex(n)))
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.InDelta(t, 0.3, p.X, 1e-12)
	assert.InDelta(t, 1.7, p.Y, 1e-12)
	assert.InDelta(t, 0.9, p.Z, 1e-12)

	for _, q := range []r3.Vec{{X: -0.1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 2.01}, {X: math.Inf(1)}} {
		_, _, ok = loc.Find(q)
		assert.False(t, ok, "%v", q)
	}
	// Corners belong to the mesh
	_, _, ok = loc.Find(r3.Vec{X: 2, Y: 2, Z: 2})
	assert.True(t, ok)
}
