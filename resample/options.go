package resample

// Options controls a single Resample call
type Options struct {
	// Workers is the number of goroutines sharing the grid points
	Workers int
	// Progress receives the completed fraction in [0,1], never decreasing
	Progress func(fraction float64)
	// Exclude holds reserved names on top of the validity mask
	Exclude ExclusionPolicy
	// Logf receives diagnostic lines, nil is silent
	Logf func(format string, args ...interface{})
}

type Option func(*Options)

func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func WithProgress(fn func(fraction float64)) Option {
	return func(o *Options) { o.Progress = fn }
}

// WithExclusions reserves extra array names
func WithExclusions(names ...string) Option {
	return func(o *Options) { o.Exclude.Add(names...) }
}

func WithLogger(logf func(format string, args ...interface{})) Option {
	return func(o *Options) { o.Logf = logf }
}

func newOptions(opts []Option) *Options {
	o := &Options{
		Workers: 1,
		Exclude: DefaultExclusionPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

func (o *Options) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}
