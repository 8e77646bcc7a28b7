package resample

import (
	"context"
	"sync"

	"github.com/nirfast/mesh2image/grid"
	"github.com/nirfast/mesh2image/mesh"
	"github.com/nirfast/mesh2image/utils"
)

// progressStride is how many grid points a worker probes between reports
const progressStride = 256

type progressMeter struct {
	mu    sync.Mutex
	fn    func(float64)
	total int
	done  int
	last  float64
}

func (pm *progressMeter) add(n int) {
	if pm.fn == nil || n == 0 {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.done += n
	f := float64(pm.done) / float64(pm.total)
	if f > pm.last {
		pm.last = f
		pm.fn(f)
	}
}

// probe interpolates every point array of m at every grid point. The result
// holds the probed arrays in mesh order, then the grid's pass-through
// background (if any), then the validity mask.
func probe(ctx context.Context, loc *Locator, m *mesh.Mesh, g *grid.SamplingGrid,
	o *Options, meter *progressMeter) ([]*utils.DataArray, error) {
	var (
		nPts    = g.NumPoints()
		sources = m.PointData
		out     = make([]*utils.DataArray, 0, len(sources)+2)
		mask    = utils.NewDataArray(ValidPointMaskName, 1, nPts)
	)
	for _, src := range sources {
		da := utils.NewDataArray(src.Name, src.NumComponents, nPts)
		da.Attribute = src.Attribute
		out = append(out, da)
	}

	pm := utils.NewPartitionMap(o.Workers, nPts)
	err := pm.Each(func(np, kMin, kMax int) error {
		done := ctx.Done()
		sinceReport := 0
		for n := kMin; n < kMax; n++ {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
			if verts, w, ok := loc.Find(g.Point(n)); ok {
				mask.Values[n] = 1
				for a, src := range sources {
					nc := src.NumComponents
					dst := out[a].Values[n*nc : (n+1)*nc]
					for c := 0; c < nc; c++ {
						dst[c] = w[0]*src.Values[verts[0]*nc+c] +
							w[1]*src.Values[verts[1]*nc+c] +
							w[2]*src.Values[verts[2]*nc+c] +
							w[3]*src.Values[verts[3]*nc+c]
					}
				}
			}
			if sinceReport++; sinceReport == progressStride {
				meter.add(sinceReport)
				sinceReport = 0
			}
		}
		meter.add(sinceReport)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bg := g.Background; bg != nil {
		switch {
		case m.PointArray(bg.Name) != nil:
			o.logf("background array %q shadowed by a mesh field of the same name\n", bg.Name)
		case bg.Validate(nPts) != nil:
			o.logf("background array %q does not match the grid: %v\n", bg.Name, bg.Validate(nPts))
		default:
			out = append(out, &utils.DataArray{
				Name:          bg.Name,
				Attribute:     bg.Attribute,
				NumComponents: bg.NumComponents,
				Values:        append([]float64(nil), bg.Values...),
			})
		}
	}
	return append(out, mask), nil
}
