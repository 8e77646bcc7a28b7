package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nirfast/mesh2image/utils"
)

// ReadSU2 reads an SU2 native format file. SU2 carries geometry only, so the
// returned mesh has no point arrays. Boundary markers are skipped.
func ReadSU2(r io.Reader) (*Mesh, error) {
	var (
		msh      = NewMesh()
		scanner  = bufio.NewScanner(r)
		ndime    int
		hasNDIME bool
		hasNPOIN bool
		err      error
	)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	nextLine := func(what string) (string, error) {
		if !scanner.Scan() {
			return "", fmt.Errorf("unexpected EOF reading %s", what)
		}
		return stripSU2Comment(scanner.Text()), nil
	}

	for scanner.Scan() {
		line := stripSU2Comment(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "NDIME="):
			hasNDIME = true
			if ndime, err = su2Count(line, "NDIME"); err != nil {
				return nil, err
			}
			if ndime != 2 && ndime != 3 {
				return nil, fmt.Errorf("unsupported dimension: NDIME=%d", ndime)
			}

		case strings.HasPrefix(line, "NPOIN="):
			if !hasNDIME {
				return nil, fmt.Errorf("NPOIN= before NDIME=")
			}
			hasNPOIN = true
			npoin, err := su2Count(line, "NPOIN")
			if err != nil {
				return nil, err
			}

			msh.Vertices = make([][]float64, 0, min(npoin, su2Prealloc))
			for i := 0; i < npoin; i++ {
				text, err := nextLine("nodes")
				if err != nil {
					return nil, err
				}
				fields := strings.Fields(text)
				if len(fields) < ndime {
					return nil, fmt.Errorf("invalid node line: expected at least %d coordinates", ndime)
				}
				coords := make([]float64, 3) // Always store 3D coordinates
				for j := 0; j < ndime; j++ {
					if coords[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("invalid coordinate: %v", err)
					}
				}
				// Node ID is implicit (0-based) based on order
				msh.Vertices = append(msh.Vertices, coords)
			}
			msh.NumVertices = npoin

		case strings.HasPrefix(line, "NELEM="):
			nelem, err := su2Count(line, "NELEM")
			if err != nil {
				return nil, err
			}
			msh.EtoV = make([][]int, 0, min(nelem, su2Prealloc))
			msh.ElementTypes = make([]utils.ElementType, 0, min(nelem, su2Prealloc))

			for i := 0; i < nelem; i++ {
				text, err := nextLine("elements")
				if err != nil {
					return nil, err
				}
				fields := strings.Fields(text)
				if len(fields) < 2 {
					return nil, fmt.Errorf("invalid element line")
				}
				su2Type, err := strconv.Atoi(fields[0])
				if err != nil {
					return nil, fmt.Errorf("invalid element type: %v", err)
				}
				// SU2 shares the VTK element type identifiers
				etype, ok := utils.VTKCellTypeMap[su2Type]
				if !ok {
					return nil, fmt.Errorf("unknown element type: %d", su2Type)
				}
				numNodes := etype.GetNumNodes()
				if len(fields) < numNodes+1 {
					return nil, fmt.Errorf("element type %v expects %d nodes, got %d fields",
						etype, numNodes, len(fields)-1)
				}
				nodes := make([]int, numNodes)
				for j := 0; j < numNodes; j++ {
					if nodes[j], err = strconv.Atoi(fields[1+j]); err != nil {
						return nil, fmt.Errorf("invalid node index: %v", err)
					}
				}
				if etype.GetDimension() != 3 {
					continue
				}
				msh.EtoV = append(msh.EtoV, nodes)
				msh.ElementTypes = append(msh.ElementTypes, etype)
			}

		case strings.HasPrefix(line, "NMARK="):
			nmark, err := su2Count(line, "NMARK")
			if err != nil {
				return nil, err
			}
			for i := 0; i < nmark; i++ {
				if _, err = nextLine("MARKER_TAG"); err != nil {
					return nil, err
				}
				text, err := nextLine("MARKER_ELEMS")
				if err != nil {
					return nil, err
				}
				nMarkerElems, err := su2Count(text, "MARKER_ELEMS")
				if err != nil {
					return nil, err
				}
				for j := 0; j < nMarkerElems; j++ {
					if _, err = nextLine("boundary elements"); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %v", err)
	}
	if !hasNDIME {
		return nil, fmt.Errorf("missing required NDIME= section")
	}
	if !hasNPOIN {
		return nil, fmt.Errorf("missing required NPOIN= section")
	}

	for k, nodes := range msh.EtoV {
		for _, n := range nodes {
			if n < 0 || n >= msh.NumVertices {
				return nil, fmt.Errorf("element %d: node index %d out of range [0,%d)",
					k, n, msh.NumVertices)
			}
		}
	}
	msh.NumElements = len(msh.EtoV)
	return msh, nil
}

// su2Prealloc caps slice capacity taken from a header count; the slices grow
// with the lines actually present
const su2Prealloc = 1 << 16

// su2Count parses a "KEY= n" header line
func su2Count(line, key string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(line, key+"=%d", &n); err != nil {
		return 0, fmt.Errorf("invalid %s line %q", key, line)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s= %d is negative", key, n)
	}
	return n, nil
}

func stripSU2Comment(line string) string {
	if idx := strings.Index(line, "%"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
