// Package pipeline sequences mesh loading, grid construction and resampling
// into a single non-reentrant run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/nirfast/mesh2image/grid"
	"github.com/nirfast/mesh2image/mesh"
	"github.com/nirfast/mesh2image/resample"
	"github.com/nirfast/mesh2image/utils"
)

// Input selects the mesh and how the sampling grid is built. A non-nil
// Reference takes precedence over Spacing.
type Input struct {
	MeshPath string

	// Reference is the geometry of an existing volume. It is reset to the
	// unit frame once probing completes, and put back as it was if the run
	// fails at any stage.
	Reference *grid.Geometry
	// Background is the reference volume's own point array, if any
	Background *utils.DataArray

	// Spacing is the voxel size of a grid laid over the mesh bounds
	Spacing float64
}

// Registrar receives each output field after a successful run
type Registrar interface {
	Register(f *resample.Field) error
}

// RegistrarFunc adapts a function to Registrar
type RegistrarFunc func(f *resample.Field) error

func (fn RegistrarFunc) Register(f *resample.Field) error { return fn(f) }

type Pipeline struct {
	fs         afero.Fs
	registrar  Registrar
	workers    int
	exclusions []string
	selection  []string
	logf       func(format string, args ...interface{})

	running  atomic.Bool
	progress progress
}

type Option func(*Pipeline)

// WithFs reads meshes from fs instead of the OS filesystem
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fs }
}

func WithRegistrar(r Registrar) Option {
	return func(p *Pipeline) { p.registrar = r }
}

func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithExclusions reserves extra array names that never become outputs
func WithExclusions(names ...string) Option {
	return func(p *Pipeline) { p.exclusions = append(p.exclusions, names...) }
}

// WithFields keeps only the named outputs. A name the run does not produce
// fails it before anything is registered.
func WithFields(names ...string) Option {
	return func(p *Pipeline) { p.selection = append(p.selection, names...) }
}

func WithLogger(logf func(format string, args ...interface{})) Option {
	return func(p *Pipeline) { p.logf = logf }
}

// WithSubscriber calls fn on every progress or status change of a run
func WithSubscriber(fn func(percent float64, status string)) Option {
	return func(p *Pipeline) { p.progress.subscriber = fn }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		fs:      afero.NewOsFs(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.progress.reset()
	return p
}

// Progress returns the percentage of the current probing pass and a status
func (p *Pipeline) Progress() (percent float64, status string) {
	return p.progress.percent.Load(), p.progress.status.Load()
}

func (p *Pipeline) printf(format string, args ...interface{}) {
	if p.logf != nil {
		p.logf(format, args...)
	}
}

// Run loads the mesh, builds the grid and resamples every point field onto
// it. Outputs are handed to the registrar in name order. Any failure aborts
// the run with no outputs and leaves Input.Reference untouched.
func (p *Pipeline) Run(ctx context.Context, in Input) (map[string]*resample.Field, error) {
	if !p.running.CAS(false, true) {
		return nil, ErrBusy
	}
	defer p.running.Store(false)

	p.progress.reset()
	fields, err := p.run(ctx, in)
	if err != nil {
		p.progress.setStatus(StatusFailed)
		return nil, err
	}
	p.progress.advance(100)
	p.progress.setStatus(StatusDone)
	return fields, nil
}

func (p *Pipeline) run(ctx context.Context, in Input) (fields map[string]*resample.Field, err error) {
	if in.Reference != nil {
		original := *in.Reference
		defer func() {
			if err != nil {
				*in.Reference = original
			}
		}()
	}

	p.progress.setStatus(StatusLoading)
	p.printf("-- Reading Mesh %s\n", in.MeshPath)
	msh, err := mesh.LoadFs(p.fs, in.MeshPath)
	if err != nil {
		return nil, stageError(StageLoad, err)
	}
	if err = ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	p.progress.setStatus(StatusGrid)
	var g *grid.SamplingGrid
	if in.Reference != nil {
		g = grid.FromReference(in.Reference)
		g.Background = in.Background
	} else if g, err = grid.FromBounds(msh.Bounds(), in.Spacing); err != nil {
		return nil, stageError(StageGrid, err)
	}
	p.printf("-- Sampling grid %s\n", g.Geometry)

	p.progress.setStatus(StatusResampling)
	fields, err = resample.Resample(ctx, msh, g,
		resample.WithWorkers(p.workers),
		resample.WithExclusions(p.exclusions...),
		resample.WithLogger(p.logf),
		resample.WithProgress(func(fraction float64) {
			p.progress.advance(100 * fraction)
		}),
	)
	if err != nil {
		if isCancellation(err) {
			return nil, cancelled(err)
		}
		return nil, stageError(StageResample, err)
	}
	if fields, err = p.selectFields(fields); err != nil {
		return nil, stageError(StageResample, err)
	}

	if p.registrar == nil {
		return fields, nil
	}
	p.progress.setStatus(StatusRegister)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs error
	for _, name := range names {
		if rerr := p.registrar.Register(fields[name]); rerr != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, rerr))
		}
	}
	if errs != nil {
		return nil, stageError(StageRegister, errs)
	}
	return fields, nil
}

func (p *Pipeline) selectFields(fields map[string]*resample.Field) (map[string]*resample.Field, error) {
	if len(p.selection) == 0 {
		return fields, nil
	}
	var (
		kept    = make(map[string]*resample.Field, len(p.selection))
		missing []string
	)
	for _, name := range p.selection {
		if f, ok := fields[name]; ok {
			kept[name] = f
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return kept, nil
}
