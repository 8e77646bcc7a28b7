// Package meshgen launches the external image-to-mesh tool that turns a
// segmented label map into a tetrahedral mesh.
package meshgen

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

type MeshType uint8

const (
	Standard MeshType = iota
	Fluorescence
	Spectral
	BEM
	BEMFluorescence
	BEMSpectral
	SPN
)

var meshTypeNames = [...]string{
	"Standard",
	"Fluorescence",
	"Spectral",
	"BEM",
	"BEM Fluorescence",
	"BEM Spectral",
	"SPN",
}

func (t MeshType) String() string {
	if int(t) < len(meshTypeNames) {
		return meshTypeNames[t]
	}
	return fmt.Sprintf("MeshType(%d)", t)
}

// MeshTypeNames lists the accepted mesh types in menu order
func MeshTypeNames() []string {
	return append([]string(nil), meshTypeNames[:]...)
}

// ParseMeshType accepts a mesh type name, case-insensitively
func ParseMeshType(s string) (MeshType, error) {
	for i, name := range meshTypeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return MeshType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mesh type %q, expected one of %s",
		s, strings.Join(meshTypeNames[:], ", "))
}

// Parameters are the inputs of one meshing run
type Parameters struct {
	LabelMap  string `yaml:"LabelMap"`  // segmented volume, one label per tissue
	Fiducials string `yaml:"Fiducials"` // source/detector positions
	MeshDir   string `yaml:"MeshDir"`
	MeshName  string `yaml:"MeshName"`
	MeshType  string `yaml:"MeshType"`

	CellSize       float64 `yaml:"CellSize"`
	CellRadiusEdge float64 `yaml:"CellRadiusEdge"`
	FacetSize      float64 `yaml:"FacetSize"`
	FacetAngle     float64 `yaml:"FacetAngle"`
	FacetDistance  float64 `yaml:"FacetDistance"`
	Optimize       bool    `yaml:"Optimize"`

	// ToolDir is where the meshing toolkit is installed
	ToolDir string `yaml:"ToolDir"`
}

func DefaultParameters() Parameters {
	return Parameters{
		MeshType:       Standard.String(),
		CellSize:       1.5,
		CellRadiusEdge: 3.0,
		FacetSize:      1.5,
		FacetAngle:     25,
		FacetDistance:  3.0,
	}
}

func (p *Parameters) Validate() error {
	switch {
	case p.LabelMap == "":
		return fmt.Errorf("invalid label map: no path given")
	case p.Fiducials == "":
		return fmt.Errorf("invalid fiducials: no path given")
	case p.MeshDir == "":
		return fmt.Errorf("no output mesh directory given")
	case p.MeshName == "" || strings.ContainsAny(p.MeshName, `/\`):
		return fmt.Errorf("invalid mesh name %q", p.MeshName)
	}
	if _, err := ParseMeshType(p.MeshType); err != nil {
		return err
	}
	for _, s := range []struct {
		name string
		val  float64
	}{
		{"cell size", p.CellSize},
		{"cell radius-edge ratio", p.CellRadiusEdge},
		{"facet size", p.FacetSize},
		{"facet distance", p.FacetDistance},
	} {
		if !(s.val > 0) {
			return fmt.Errorf("%s must be positive, got %g", s.name, s.val)
		}
	}
	if !(p.FacetAngle > 0 && p.FacetAngle <= 90) {
		return fmt.Errorf("facet angle must be in (0,90] degrees, got %g", p.FacetAngle)
	}
	return nil
}

// OutputPath is the mesh file the tool writes
func (p *Parameters) OutputPath() string {
	return filepath.Join(p.MeshDir, p.MeshName+".vtk")
}

// Args renders the parameters as tool command line flags
func (p *Parameters) Args() []string {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	mt, _ := ParseMeshType(p.MeshType)
	args := []string{
		"--labelmap", p.LabelMap,
		"--fiducials", p.Fiducials,
		"--meshdir", p.MeshDir,
		"--meshname", p.MeshName,
		"--meshtype", mt.String(),
		"--cell_size", ff(p.CellSize),
		"--cellradiusedge", ff(p.CellRadiusEdge),
		"--facet_size", ff(p.FacetSize),
		"--facetangle", ff(p.FacetAngle),
		"--facetdistance", ff(p.FacetDistance),
	}
	if p.Optimize {
		args = append(args, "--optimizemesh")
	}
	if p.ToolDir != "" {
		args = append(args, "--nirfastDir", p.ToolDir)
	}
	return args
}

func (p *Parameters) Print() {
	fmt.Printf("%s\t\t= Label Map\n", p.LabelMap)
	fmt.Printf("%s\t\t= Fiducials\n", p.Fiducials)
	fmt.Printf("%s\t\t= Output Mesh\n", p.OutputPath())
	fmt.Printf("[%s]\t\t= Mesh Type\n", p.MeshType)
	fmt.Printf("%8.5f\t\t= Cell Size\n", p.CellSize)
	fmt.Printf("%8.5f\t\t= Cell Radius-Edge Ratio\n", p.CellRadiusEdge)
	fmt.Printf("%8.5f\t\t= Facet Size\n", p.FacetSize)
	fmt.Printf("%8.5f\t\t= Facet Angle\n", p.FacetAngle)
	fmt.Printf("%8.5f\t\t= Facet Distance\n", p.FacetDistance)
	fmt.Printf("%v\t\t\t= Optimize\n", p.Optimize)
}
