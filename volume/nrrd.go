package volume

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nirfast/mesh2image/utils"
	"github.com/nirfast/mesh2image/vtk"
)

// nrrdChunk bounds how many values are decoded per read
const nrrdChunk = 1 << 16

// nrrdType maps NRRD type names to a byte width and a decoder
type nrrdType struct {
	size   int
	decode func(b []byte, order binary.ByteOrder) float64
}

var nrrdTypes = func() map[string]nrrdType {
	var (
		i8  = nrrdType{1, func(b []byte, _ binary.ByteOrder) float64 { return float64(int8(b[0])) }}
		u8  = nrrdType{1, func(b []byte, _ binary.ByteOrder) float64 { return float64(b[0]) }}
		i16 = nrrdType{2, func(b []byte, o binary.ByteOrder) float64 { return float64(int16(o.Uint16(b))) }}
		u16 = nrrdType{2, func(b []byte, o binary.ByteOrder) float64 { return float64(o.Uint16(b)) }}
		i32 = nrrdType{4, func(b []byte, o binary.ByteOrder) float64 { return float64(int32(o.Uint32(b))) }}
		u32 = nrrdType{4, func(b []byte, o binary.ByteOrder) float64 { return float64(o.Uint32(b)) }}
		i64 = nrrdType{8, func(b []byte, o binary.ByteOrder) float64 { return float64(int64(o.Uint64(b))) }}
		u64 = nrrdType{8, func(b []byte, o binary.ByteOrder) float64 { return float64(o.Uint64(b)) }}
		f32 = nrrdType{4, func(b []byte, o binary.ByteOrder) float64 { return float64(math.Float32frombits(o.Uint32(b))) }}
		f64 = nrrdType{8, func(b []byte, o binary.ByteOrder) float64 { return math.Float64frombits(o.Uint64(b)) }}
	)
	types := make(map[string]nrrdType)
	for _, names := range []struct {
		t     nrrdType
		names []string
	}{
		{i8, []string{"signed char", "int8", "int8_t"}},
		{u8, []string{"uchar", "unsigned char", "uint8", "uint8_t"}},
		{i16, []string{"short", "short int", "signed short", "signed short int", "int16", "int16_t"}},
		{u16, []string{"ushort", "unsigned short", "unsigned short int", "uint16", "uint16_t"}},
		{i32, []string{"int", "signed int", "int32", "int32_t"}},
		{u32, []string{"uint", "unsigned int", "uint32", "uint32_t"}},
		{i64, []string{"longlong", "long long", "long long int", "signed long long",
			"signed long long int", "int64", "int64_t"}},
		{u64, []string{"ulonglong", "unsigned long long", "unsigned long long int", "uint64", "uint64_t"}},
		{f32, []string{"float"}},
		{f64, []string{"double"}},
	} {
		for _, name := range names.names {
			types[name] = names.t
		}
	}
	return types
}()

// parseVectors splits a space directions value such as
// "none (0.5,0,0) (0,0.5,0) (0,0,2)" into vectors, nil for "none".
func parseVectors(s string) (vecs [][]float64, err error) {
	s = strings.TrimSpace(s)
	for len(s) > 0 {
		switch {
		case strings.HasPrefix(s, "none"):
			vecs = append(vecs, nil)
			s = s[len("none"):]
		case s[0] == '(':
			end := strings.IndexByte(s, ')')
			if end < 0 {
				return nil, fmt.Errorf("unterminated vector in %q", s)
			}
			var vec []float64
			for _, tok := range strings.Split(s[1:end], ",") {
				f, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
				if err != nil {
					return nil, fmt.Errorf("invalid vector component %q", tok)
				}
				vec = append(vec, f)
			}
			vecs = append(vecs, vec)
			s = s[end+1:]
		default:
			return nil, fmt.Errorf("unexpected %q in vector list", s)
		}
		s = strings.TrimSpace(s)
	}
	return
}

// ReadNRRD reads an attached-header NRRD volume with raw or ascii encoding.
// A 4D volume is read as a multi-component array when its first axis is
// not spatial. Only axis aligned space directions are accepted.
func ReadNRRD(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)
	magic, err := br.ReadString('\n')
	if err != nil || !strings.HasPrefix(magic, "NRRD000") {
		return nil, fmt.Errorf("not a NRRD file")
	}

	fields := make(map[string]string)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			return nil, fmt.Errorf("header: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") || strings.Contains(line, ":=") {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		fields[strings.ToLower(key)] = strings.TrimSpace(value)
		if err == io.EOF {
			break
		}
	}
	if _, ok := fields["data file"]; ok {
		return nil, fmt.Errorf("detached data files are not supported")
	}

	typ, ok := nrrdTypes[fields["type"]]
	if !ok {
		return nil, fmt.Errorf("unsupported type %q", fields["type"])
	}
	dim, err := strconv.Atoi(fields["dimension"])
	if err != nil || (dim != 3 && dim != 4) {
		return nil, fmt.Errorf("unsupported dimension %q", fields["dimension"])
	}
	sizeToks := strings.Fields(fields["sizes"])
	if len(sizeToks) != dim {
		return nil, fmt.Errorf("sizes %q does not match dimension %d", fields["sizes"], dim)
	}
	sizes := make([]int, dim)
	for i, tok := range sizeToks {
		if sizes[i], err = strconv.Atoi(tok); err != nil || sizes[i] < 1 {
			return nil, fmt.Errorf("invalid size %q", tok)
		}
	}

	v := &Volume{Name: fields["content"]}
	nComp, spatial := 1, sizes
	if dim == 4 {
		nComp, spatial = sizes[0], sizes[1:]
	}
	copy(v.Dimensions[:], spatial)
	v.Spacing = [3]float64{1, 1, 1}

	if dirs, ok := fields["space directions"]; ok {
		vecs, err := parseVectors(dirs)
		if err != nil {
			return nil, err
		}
		if len(vecs) != dim {
			return nil, fmt.Errorf("space directions has %d entries, expected %d", len(vecs), dim)
		}
		vecs = vecs[dim-3:]
		for a, vec := range vecs {
			if len(vec) != 3 {
				return nil, fmt.Errorf("space direction %d is not a 3-vector", a)
			}
			for b := 0; b < 3; b++ {
				if b != a && vec[b] != 0 {
					return nil, fmt.Errorf("space directions are not axis aligned")
				}
			}
			v.Spacing[a] = math.Abs(vec[a])
		}
	} else if sp, ok := fields["spacings"]; ok {
		toks := strings.Fields(sp)
		if len(toks) != dim {
			return nil, fmt.Errorf("spacings %q does not match dimension %d", sp, dim)
		}
		toks = toks[dim-3:]
		for a, tok := range toks {
			if v.Spacing[a], err = strconv.ParseFloat(tok, 64); err != nil {
				return nil, fmt.Errorf("invalid spacing %q", tok)
			}
		}
	}
	if origin, ok := fields["space origin"]; ok {
		vecs, err := parseVectors(origin)
		if err != nil || len(vecs) != 1 || len(vecs[0]) != 3 {
			return nil, fmt.Errorf("invalid space origin %q", origin)
		}
		copy(v.Origin[:], vecs[0])
	}

	n, err := vtk.MulCount(sizes...)
	if err == nil {
		_, err = vtk.MulCount(n, typ.size)
	}
	if err != nil {
		return nil, fmt.Errorf("sizes %q: %v", fields["sizes"], err)
	}
	vals := make([]float64, 0, min(n, nrrdChunk))
	switch enc := fields["encoding"]; enc {
	case "raw":
		var order binary.ByteOrder = binary.LittleEndian
		if fields["endian"] == "big" {
			order = binary.BigEndian
		}
		buf := make([]byte, min(n, nrrdChunk)*typ.size)
		for len(vals) < n {
			b := buf[:min(n-len(vals), nrrdChunk)*typ.size]
			if _, err = io.ReadFull(br, b); err != nil {
				return nil, fmt.Errorf("reading %d values: %v", n, err)
			}
			for i := 0; i < len(b); i += typ.size {
				vals = append(vals, typ.decode(b[i:], order))
			}
		}
	case "ascii", "text", "txt":
		sc := bufio.NewScanner(br)
		sc.Split(bufio.ScanWords)
		for len(vals) < n {
			if !sc.Scan() {
				return nil, fmt.Errorf("reading value %d of %d: unexpected EOF", len(vals), n)
			}
			f, err := strconv.ParseFloat(sc.Text(), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q", sc.Text())
			}
			vals = append(vals, f)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	v.Scalars = &utils.DataArray{
		Name:          v.Name,
		Attribute:     utils.ScalarsAttribute,
		NumComponents: nComp,
		Values:        vals,
	}
	return v, nil
}

// WriteNRRD writes v as raw little-endian doubles with an attached header
func WriteNRRD(w io.Writer, v *Volume) error {
	bw := bufio.NewWriter(w)
	nComp := 1
	if v.Scalars != nil {
		nComp = v.Scalars.NumComponents
	}
	fmt.Fprintf(bw, "NRRD0004\n")
	fmt.Fprintf(bw, "# Complete NRRD file format specification at:\n")
	fmt.Fprintf(bw, "# http://teem.sourceforge.net/nrrd/format.html\n")
	fmt.Fprintf(bw, "type: double\n")
	dirs := fmt.Sprintf("(%v,0,0) (0,%v,0) (0,0,%v)", v.Spacing[0], v.Spacing[1], v.Spacing[2])
	if nComp > 1 {
		fmt.Fprintf(bw, "dimension: 4\nspace: left-posterior-superior\n")
		fmt.Fprintf(bw, "sizes: %d %d %d %d\n", nComp, v.Dimensions[0], v.Dimensions[1], v.Dimensions[2])
		fmt.Fprintf(bw, "space directions: none %s\n", dirs)
		fmt.Fprintf(bw, "kinds: vector domain domain domain\n")
	} else {
		fmt.Fprintf(bw, "dimension: 3\nspace: left-posterior-superior\n")
		fmt.Fprintf(bw, "sizes: %d %d %d\n", v.Dimensions[0], v.Dimensions[1], v.Dimensions[2])
		fmt.Fprintf(bw, "space directions: %s\n", dirs)
		fmt.Fprintf(bw, "kinds: domain domain domain\n")
	}
	fmt.Fprintf(bw, "endian: little\nencoding: raw\n")
	fmt.Fprintf(bw, "space origin: (%v,%v,%v)\n", v.Origin[0], v.Origin[1], v.Origin[2])
	if v.Name != "" {
		fmt.Fprintf(bw, "content: %s\n", v.Name)
	}
	fmt.Fprintf(bw, "\n")

	var b [8]byte
	if v.Scalars == nil {
		// Header only volumes still carry a zero filled payload
		for i := 0; i < v.NumPoints(); i++ {
			if _, err := bw.Write(b[:]); err != nil {
				return err
			}
		}
		return bw.Flush()
	}
	for _, val := range v.Scalars.Values {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(val))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
