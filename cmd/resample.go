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
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nirfast/mesh2image/InputParameters"
	"github.com/nirfast/mesh2image/pipeline"
	"github.com/nirfast/mesh2image/resample"
	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/volume"
)

// ResampleCmd represents the resample command
var ResampleCmd = &cobra.Command{
	Use:   "resample",
	Short: "Resample mesh point fields onto a regular grid and write one volume per field",
	Long: `
Resample mesh point fields onto a regular grid and write one volume per field.

The grid is taken from a reference volume (-r) when given, otherwise it covers
the mesh bounds at the requested spacing (-s). Parameters can also come from a
YAML input file (-I); flags given on the command line take precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rp, err := resampleParameters(cmd)
		if err != nil {
			return err
		}
		if viper.GetBool("verbose") {
			rp.Print()
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return RunResample(ctx, afero.NewOsFs(), rp, cmd.OutOrStdout(), viper.GetBool("verbose"))
	},
}

func init() {
	rootCmd.AddCommand(ResampleCmd)
	ResampleCmd.Flags().StringP("inputParametersFile", "I", "", "YAML file for resample parameters")
	ResampleCmd.Flags().StringP("mesh", "m", "", "mesh file in VTK (.vtk) or SU2 (.su2) format")
	ResampleCmd.Flags().StringP("reference", "r", "", "reference volume (.vtk, .nrrd) providing the sampling grid")
	ResampleCmd.Flags().Float64P("spacing", "s", 0, "voxel size of a grid over the mesh bounds, used without a reference")
	ResampleCmd.Flags().StringP("output", "o", ".", "directory the resampled volumes are written to")
	ResampleCmd.Flags().String("prefix", "", "output file name prefix, defaults to the mesh file name")
	ResampleCmd.Flags().StringP("format", "f", "vtk", "output volume format, vtk or nrrd")
	ResampleCmd.Flags().IntP("workers", "w", 0, "number of probing goroutines, 0 uses every CPU")
	ResampleCmd.Flags().StringSliceP("exclude", "x", nil, "extra array names never written as outputs")
	ResampleCmd.Flags().StringSlice("fields", nil, "write only these fields, failing if any is not produced")
	ResampleCmd.Flags().StringToString("field-output", nil, "output file per field, as name=path")
	_ = viper.BindPFlag("output", ResampleCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("format", ResampleCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("workers", ResampleCmd.Flags().Lookup("workers"))
}

func resampleParameters(cmd *cobra.Command) (rp *InputParameters.ResampleParameters, err error) {
	rp = &InputParameters.ResampleParameters{
		OutputDir: viper.GetString("output"),
		Format:    viper.GetString("format"),
		Workers:   viper.GetInt("workers"),
	}
	flags := cmd.Flags()
	if ipFile, _ := flags.GetString("inputParametersFile"); ipFile != "" {
		var data []byte
		if data, err = os.ReadFile(ipFile); err != nil {
			return nil, err
		}
		if err = rp.Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", ipFile, err)
		}
	}
	if flags.Changed("mesh") || rp.MeshFile == "" {
		rp.MeshFile, _ = flags.GetString("mesh")
	}
	if flags.Changed("reference") {
		rp.Reference, _ = flags.GetString("reference")
	}
	if flags.Changed("spacing") {
		rp.Spacing, _ = flags.GetFloat64("spacing")
	}
	if flags.Changed("output") || rp.OutputDir == "" {
		rp.OutputDir = viper.GetString("output")
	}
	if flags.Changed("prefix") {
		rp.Prefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("format") || rp.Format == "" {
		rp.Format = viper.GetString("format")
	}
	if flags.Changed("workers") {
		rp.Workers = viper.GetInt("workers")
	}
	if flags.Changed("exclude") {
		rp.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("fields") {
		rp.Fields, _ = flags.GetStringSlice("fields")
	}
	if flags.Changed("field-output") {
		rp.Outputs, _ = flags.GetStringToString("field-output")
	}
	if err = rp.Validate(); err != nil {
		return nil, err
	}
	return
}

// RunResample runs the pipeline for rp and writes a summary of the fields to out
func RunResample(ctx context.Context, fs afero.Fs, rp *InputParameters.ResampleParameters,
	out io.Writer, verbose bool) error {
	input := pipeline.Input{
		MeshPath: rp.MeshFile,
		Spacing:  rp.Spacing,
	}
	if rp.Reference != "" {
		ref, err := volume.Read(fs, rp.Reference)
		if err != nil {
			return fmt.Errorf("reference volume: %w", err)
		}
		input.Reference = &ref.Geometry
		input.Background = ref.Scalars
	}
	workers := rp.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	reg := &volume.FileRegistrar{
		Fs:     fs,
		Dir:    rp.OutputDir,
		Prefix: rp.OutputPrefix(),
		Ext:    rp.Ext(),
		Paths:  rp.Outputs,
	}
	opts := []pipeline.Option{
		pipeline.WithFs(fs),
		pipeline.WithRegistrar(reg),
		pipeline.WithWorkers(workers),
		pipeline.WithExclusions(rp.Exclude...),
		pipeline.WithFields(rp.Fields...),
	}
	if verbose {
		lastStatus := ""
		opts = append(opts,
			pipeline.WithLogger(func(format string, args ...interface{}) {
				fmt.Fprintf(out, format, args...)
			}),
			pipeline.WithSubscriber(func(percent float64, status string) {
				if status != lastStatus {
					fmt.Fprintf(out, "-- %s\n", status)
					lastStatus = status
				}
			}))
	}

	start := time.Now()
	fields, err := pipeline.New(opts...).Run(ctx, input)
	if err != nil {
		return err
	}
	printFields(out, fields)
	for _, path := range reg.Written {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	if verbose {
		fmt.Fprintf(out, "elapsed time = %v, %s\n", time.Since(start), utils.GetMemUsage())
	}
	return nil
}

func printFields(out io.Writer, fields map[string]*resample.Field) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := fields[name]
		fmt.Fprintf(out, "%-24s %d component(s) on %s\n", name, f.NumComponents, f.Physical)
		for c := 0; c < f.NumComponents; c++ {
			lo, hi := f.Range(c)
			fmt.Fprintf(out, "    [%d] range [%g, %g]\n", c, lo, hi)
		}
	}
}
