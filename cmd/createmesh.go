/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nirfast/mesh2image/InputParameters"
	"github.com/nirfast/mesh2image/meshgen"
)

// CreateMeshCmd represents the createmesh command
var CreateMeshCmd = &cobra.Command{
	Use:   "createmesh",
	Short: "Generate a tetrahedral mesh from a segmented label map",
	Long: `
Runs the external image-to-mesh tool on a label map and a fiducials file and
reports where the mesh was written. The result can be passed to
"mesh2image resample -m".

Mesh types: ` + strings.Join(meshgen.MeshTypeNames(), ", "),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := meshParameters(cmd)
		if err != nil {
			return err
		}
		if viper.GetBool("verbose") {
			p.Print()
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		out := cmd.OutOrStdout()
		r := &meshgen.Runner{
			Tool:   viper.GetString("tool"),
			Status: func(line string) { fmt.Fprintln(out, line) },
		}
		path, err := r.Run(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(CreateMeshCmd)
	d := meshgen.DefaultParameters()
	flags := CreateMeshCmd.Flags()
	flags.StringP("inputParametersFile", "I", "", "YAML file for meshing parameters")
	flags.StringP("labelmap", "l", "", "segmented label map volume")
	flags.StringP("fiducials", "p", "", "source and detector fiducials")
	flags.StringP("meshdir", "o", "", "directory the mesh is written to")
	flags.StringP("meshname", "n", "", "mesh file name without extension")
	flags.StringP("meshtype", "t", d.MeshType, "mesh type")
	flags.Float64("cellSize", d.CellSize, "maximum tetrahedron circumradius")
	flags.Float64("cellRadiusEdge", d.CellRadiusEdge, "maximum radius-edge ratio of tetrahedra")
	flags.Float64("facetSize", d.FacetSize, "maximum surface facet circumradius")
	flags.Float64("facetAngle", d.FacetAngle, "minimum surface facet angle in degrees")
	flags.Float64("facetDistance", d.FacetDistance, "maximum facet distance to the label boundary")
	flags.Bool("optimize", d.Optimize, "optimize the generated mesh")
	flags.String("toolDir", "", "directory of the meshing toolkit")
	flags.String("tool", meshgen.DefaultTool, "mesh generator executable")
	_ = viper.BindPFlag("toolDir", flags.Lookup("toolDir"))
	_ = viper.BindPFlag("tool", flags.Lookup("tool"))
}

func meshParameters(cmd *cobra.Command) (p meshgen.Parameters, err error) {
	p = meshgen.DefaultParameters()
	flags := cmd.Flags()
	if ipFile, _ := flags.GetString("inputParametersFile"); ipFile != "" {
		var data []byte
		if data, err = os.ReadFile(ipFile); err != nil {
			return
		}
		if p, err = InputParameters.ParseMeshParameters(data); err != nil {
			err = fmt.Errorf("%s: %w", ipFile, err)
			return
		}
	}
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *float64) {
		if flags.Changed(name) {
			*dst, _ = flags.GetFloat64(name)
		}
	}
	str("labelmap", &p.LabelMap)
	str("fiducials", &p.Fiducials)
	str("meshdir", &p.MeshDir)
	str("meshname", &p.MeshName)
	str("meshtype", &p.MeshType)
	num("cellSize", &p.CellSize)
	num("cellRadiusEdge", &p.CellRadiusEdge)
	num("facetSize", &p.FacetSize)
	num("facetAngle", &p.FacetAngle)
	num("facetDistance", &p.FacetDistance)
	if flags.Changed("optimize") {
		p.Optimize, _ = flags.GetBool("optimize")
	}
	if flags.Changed("toolDir") || p.ToolDir == "" {
		p.ToolDir = viper.GetString("toolDir")
	}
	err = p.Validate()
	return
}
