package resample

import (
	"sort"

	"github.com/nirfast/mesh2image/utils"
)

const (
	// ValidPointMaskName is the probe bookkeeping array marking grid points
	// that fell inside a cell
	ValidPointMaskName = "vtkValidPointMask"

	// DefaultBackgroundName is the point array name image volumes carry when
	// nothing else is known about the reference
	DefaultBackgroundName = "ImageScalars"
)

// ExclusionPolicy is the set of reserved array names that never become
// output fields.
type ExclusionPolicy map[string]struct{}

func NewExclusionPolicy(names ...string) ExclusionPolicy {
	p := make(ExclusionPolicy, len(names))
	p.Add(names...)
	return p
}

// DefaultExclusionPolicy reserves only the validity mask
func DefaultExclusionPolicy() ExclusionPolicy {
	return NewExclusionPolicy(ValidPointMaskName)
}

func (p ExclusionPolicy) Add(names ...string) {
	for _, name := range names {
		p[name] = struct{}{}
	}
}

func (p ExclusionPolicy) Excludes(name string) bool {
	_, ok := p[name]
	return ok
}

// Names lists the reserved names in sorted order
func (p ExclusionPolicy) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p ExclusionPolicy) clone() ExclusionPolicy {
	c := make(ExclusionPolicy, len(p))
	for name := range p {
		c[name] = struct{}{}
	}
	return c
}

// Apply drops every reserved array, keeping order
func (p ExclusionPolicy) Apply(arrays []*utils.DataArray) (kept []*utils.DataArray) {
	for _, da := range arrays {
		if !p.Excludes(da.Name) {
			kept = append(kept, da)
		}
	}
	return
}
