package vtk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Writer emits a legacy VTK file. Errors are sticky and reported by Flush.
type Writer struct {
	w      *bufio.Writer
	Format Format
	err    error
}

func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: bufio.NewWriter(w), Format: format}
}

// WriteHeader writes the version, title, format and DATASET lines
func (w *Writer) WriteHeader(title, dataset string) {
	if title == "" {
		title = "vtk output"
	}
	w.Printf("# vtk DataFile Version 3.0\n%s\n%s\nDATASET %s\n", title, w.Format, dataset)
}

func (w *Writer) Printf(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

// WriteDoubles writes vals as a double payload followed by a newline.
// ASCII output puts perLine values on each line.
func (w *Writer) WriteDoubles(vals []float64, perLine int) {
	if w.err != nil {
		return
	}
	if w.Format == Binary {
		var b [8]byte
		for _, v := range vals {
			binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
			if _, w.err = w.w.Write(b[:]); w.err != nil {
				return
			}
		}
		w.Printf("\n")
		return
	}
	if perLine < 1 {
		perLine = 1
	}
	buf := make([]byte, 0, 32)
	for i, v := range vals {
		buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
		if (i+1)%perLine == 0 || i == len(vals)-1 {
			buf = append(buf, '\n')
		} else {
			buf = append(buf, ' ')
		}
		if _, w.err = w.w.Write(buf); w.err != nil {
			return
		}
	}
}

// WriteInts writes vals as an int payload followed by a newline
func (w *Writer) WriteInts(vals []int, perLine int) {
	if w.err != nil {
		return
	}
	if w.Format == Binary {
		var b [4]byte
		for _, v := range vals {
			binary.BigEndian.PutUint32(b[:], uint32(int32(v)))
			if _, w.err = w.w.Write(b[:]); w.err != nil {
				return
			}
		}
		w.Printf("\n")
		return
	}
	if perLine < 1 {
		perLine = 1
	}
	buf := make([]byte, 0, 16)
	for i, v := range vals {
		buf = strconv.AppendInt(buf[:0], int64(v), 10)
		if (i+1)%perLine == 0 || i == len(vals)-1 {
			buf = append(buf, '\n')
		} else {
			buf = append(buf, ' ')
		}
		if _, w.err = w.w.Write(buf); w.err != nil {
			return
		}
	}
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
