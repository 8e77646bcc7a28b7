package InputParameters

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/nirfast/mesh2image/meshgen"
)

// Parameters obtained from the YAML input file of a resample run
type ResampleParameters struct {
	Title     string   `yaml:"Title"`
	MeshFile  string   `yaml:"MeshFile"`
	Reference string   `yaml:"Reference"` // volume whose grid the fields are sampled on
	Spacing   float64  `yaml:"Spacing"`   // used when there is no reference
	OutputDir string   `yaml:"OutputDir"`
	Prefix    string   `yaml:"Prefix"`
	Format    string   `yaml:"Format"` // vtk or nrrd
	Workers   int      `yaml:"Workers"`
	Exclude   []string `yaml:"Exclude"`
	Fields    []string `yaml:"Fields"` // write only these fields, all when empty
	// Outputs maps a field name to its own output file
	Outputs map[string]string `yaml:"Outputs"`
}

func (rp *ResampleParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, rp)
}

func (rp *ResampleParameters) Validate() error {
	if rp.MeshFile == "" {
		return fmt.Errorf("no MeshFile given")
	}
	if rp.Reference == "" && !(rp.Spacing > 0) {
		return fmt.Errorf("need a Reference volume or a positive Spacing, got %g", rp.Spacing)
	}
	switch rp.Ext() {
	case ".vtk", ".nrrd":
	default:
		return fmt.Errorf("unsupported output Format %q", rp.Format)
	}
	if rp.Workers < 0 {
		return fmt.Errorf("Workers must not be negative")
	}
	selected := make(map[string]bool, len(rp.Fields))
	for _, name := range rp.Fields {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty name in Fields")
		}
		selected[name] = true
	}
	for name, path := range rp.Outputs {
		if path == "" {
			return fmt.Errorf("Outputs gives no path for field %q", name)
		}
		if len(selected) > 0 && !selected[name] {
			return fmt.Errorf("Outputs names field %q which is not in Fields", name)
		}
	}
	return nil
}

// Ext returns the output file extension, ".vtk" unless Format says otherwise
func (rp *ResampleParameters) Ext() string {
	if rp.Format == "" {
		return ".vtk"
	}
	return "." + strings.TrimPrefix(strings.ToLower(rp.Format), ".")
}

// OutputPrefix defaults to the mesh file's base name
func (rp *ResampleParameters) OutputPrefix() string {
	if rp.Prefix != "" {
		return rp.Prefix
	}
	base := filepath.Base(rp.MeshFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (rp *ResampleParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", rp.Title)
	fmt.Printf("%s\t\t= Mesh File\n", rp.MeshFile)
	if rp.Reference != "" {
		fmt.Printf("%s\t\t= Reference Volume\n", rp.Reference)
	} else {
		fmt.Printf("%8.5f\t\t= Spacing\n", rp.Spacing)
	}
	fmt.Printf("%s\t\t= Output Directory\n", rp.OutputDir)
	fmt.Printf("[%s]\t\t\t= Output Format\n", strings.TrimPrefix(rp.Ext(), "."))
	fmt.Printf("[%d]\t\t\t\t= Workers\n", rp.Workers)
	for _, name := range rp.Exclude {
		fmt.Printf("Exclude[%s]\n", name)
	}
	for _, name := range rp.Fields {
		if path, ok := rp.Outputs[name]; ok {
			fmt.Printf("Field[%s]\t\t= %s\n", name, path)
		} else {
			fmt.Printf("Field[%s]\n", name)
		}
	}
}

// ParseMeshParameters overlays a YAML input file on the default meshing parameters
func ParseMeshParameters(data []byte) (p meshgen.Parameters, err error) {
	p = meshgen.DefaultParameters()
	err = yaml.Unmarshal(data, &p)
	return
}
