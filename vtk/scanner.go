// Package vtk reads and writes the legacy VTK file format shared by mesh
// datasets and image volumes.
package vtk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Format selects how array data is encoded after each keyword line
type Format uint8

const (
	ASCII Format = iota
	Binary
)

func (f Format) String() string {
	return [...]string{"ASCII", "BINARY"}[f]
}

// Header is the fixed four-line preamble of a legacy file
type Header struct {
	Major, Minor int
	Title        string
	Format       Format
	Dataset      string // e.g. UNSTRUCTURED_GRID, STRUCTURED_POINTS
}

// Scanner tokenises a legacy VTK file. Keyword lines are always text;
// array payloads are text tokens or big-endian binary blocks depending on
// the header format.
type Scanner struct {
	r       *bufio.Reader
	Format  Format
	line    int
	pending []string
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 1<<16)}
}

// Line returns the number of text lines consumed so far
func (s *Scanner) Line() int { return s.line }

func (s *Scanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", s.line, fmt.Sprintf(format, args...))
}

func (s *Scanner) readLine() (string, error) {
	text, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(text) > 0 {
			err = nil
		} else {
			return "", err
		}
	}
	s.line++
	return strings.TrimRight(text, "\r\n"), nil
}

// ReadHeader consumes the version line, title, format and dataset lines
func (s *Scanner) ReadHeader() (h *Header, err error) {
	var line string
	if line, err = s.readLine(); err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	const magic = "# vtk DataFile Version"
	if !strings.HasPrefix(line, magic) {
		return nil, s.errorf("not a legacy VTK file: %q", line)
	}
	h = &Header{}
	version := strings.TrimSpace(strings.TrimPrefix(line, magic))
	if _, err = fmt.Sscanf(version, "%d.%d", &h.Major, &h.Minor); err != nil {
		return nil, s.errorf("invalid version %q", version)
	}
	if h.Title, err = s.readLine(); err != nil {
		return nil, fmt.Errorf("missing title: %w", err)
	}
	if line, err = s.readLine(); err != nil {
		return nil, fmt.Errorf("missing format: %w", err)
	}
	switch strings.ToUpper(strings.TrimSpace(line)) {
	case "ASCII":
		h.Format = ASCII
	case "BINARY":
		h.Format = Binary
	default:
		return nil, s.errorf("unknown file format %q", line)
	}
	s.Format = h.Format
	fields, err := s.NextKeywordLine()
	if err != nil {
		return nil, fmt.Errorf("missing DATASET: %w", err)
	}
	if len(fields) != 2 || strings.ToUpper(fields[0]) != "DATASET" {
		return nil, s.errorf("expected DATASET, got %q", strings.Join(fields, " "))
	}
	h.Dataset = strings.ToUpper(fields[1])
	return h, nil
}

// NextKeywordLine returns the fields of the next non-blank text line.
// io.EOF is returned unwrapped at end of input.
func (s *Scanner) NextKeywordLine() ([]string, error) {
	if len(s.pending) > 0 {
		fields := s.pending
		s.pending = nil
		return fields, nil
	}
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields, nil
		}
	}
}

// SkipBlock consumes lines up to and including the next blank line.
// Used for METADATA / INFORMATION sections.
func (s *Scanner) SkipBlock() error {
	s.pending = nil
	for {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			return nil
		}
	}
}

func (s *Scanner) nextToken() (string, error) {
	for len(s.pending) == 0 {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		s.pending = strings.Fields(line)
	}
	tok := s.pending[0]
	s.pending = s.pending[1:]
	return tok, nil
}

// chunkValues bounds how many values are buffered ahead of the input, so a
// corrupt count fails on a short read instead of a huge allocation
const chunkValues = 1 << 16

// MulCount multiplies header counts, rejecting negative factors and overflow
func MulCount(factors ...int) (int, error) {
	n := 1
	for _, f := range factors {
		if f < 0 {
			return 0, fmt.Errorf("negative count %d", f)
		}
		if f != 0 && n > math.MaxInt/f {
			return 0, fmt.Errorf("count %d x %d overflows", n, f)
		}
		n *= f
	}
	return n, nil
}

func readValues[T any](s *Scanner, n int, dt DataType, decode func([]byte) T,
	parse func(string) (T, error)) ([]T, error) {
	size := dt.Size()
	if size == 0 {
		return nil, s.errorf("unsupported data type %q", dt)
	}
	if n < 0 {
		return nil, s.errorf("negative value count %d", n)
	}
	if _, err := MulCount(n, size); err != nil {
		return nil, s.errorf("%d %s values: %v", n, dt, err)
	}
	out := make([]T, 0, min(n, chunkValues))
	if s.Format == Binary {
		buf := make([]byte, min(n, chunkValues)*size)
		for len(out) < n {
			b := buf[:min(n-len(out), chunkValues)*size]
			if _, err := io.ReadFull(s.r, b); err != nil {
				return nil, s.errorf("reading %d %s values: %v", n, dt, err)
			}
			for i := 0; i < len(b); i += size {
				out = append(out, decode(b[i:]))
			}
		}
		return out, nil
	}
	for len(out) < n {
		tok, err := s.nextToken()
		if err != nil {
			return nil, s.errorf("reading value %d of %d: %v", len(out), n, err)
		}
		v, err := parse(tok)
		if err != nil {
			return nil, s.errorf("invalid number %q", tok)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadFloats reads n values of type dt
func (s *Scanner) ReadFloats(n int, dt DataType) ([]float64, error) {
	return readValues(s, n, dt, dt.decode, func(tok string) (float64, error) {
		return strconv.ParseFloat(tok, 64)
	})
}

// ReadInts reads n integer values of type dt
func (s *Scanner) ReadInts(n int, dt DataType) ([]int, error) {
	if !dt.IsInteger() {
		return nil, s.errorf("expected integer data, got %s", dt)
	}
	return readValues(s, n, dt, dt.decodeInt, strconv.Atoi)
}

// Atoi parses a count field of a keyword line
func (s *Scanner) Atoi(keyword, tok string) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return 0, s.errorf("%s: invalid count %q", keyword, tok)
	}
	return n, nil
}
