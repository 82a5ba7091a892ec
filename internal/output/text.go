// Package output writes sweep measurements to files: tab separated text,
// parquet and PNG plots.
package output

import (
	"bufio"
	"io"
	"strconv"

	"github.com/RMahshie/zsweep/pkg/models"
)

// TextHeader is the optional first line of a text result file.
const TextHeader = "Frequency [Hz]\tImpedance [Ohm]\tPhase [deg]"

// TextSink writes one "<freq>\t<|Z|>\t<phase>" line per measurement.
type TextSink struct {
	w      *bufio.Writer
	closer io.Closer
	line   []byte
}

// NewTextSink wraps w. When w is also an io.Closer it is closed with the sink.
func NewTextSink(w io.Writer, header bool) (*TextSink, error) {
	s := &TextSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if header {
		if _, err := s.w.WriteString(TextHeader + "\n"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *TextSink) Write(m models.Measurement) error {
	s.line = s.line[:0]
	s.line = FormatValue(s.line, m.Frequency)
	s.line = append(s.line, '\t')
	s.line = FormatValue(s.line, m.Impedance)
	s.line = append(s.line, '\t')
	s.line = FormatValue(s.line, m.Phase)
	s.line = append(s.line, '\n')
	_, err := s.w.Write(s.line)
	return err
}

// Close flushes buffered lines and closes the underlying writer.
func (s *TextSink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FormatValue appends the shortest decimal form of v; integral values carry no fraction.
func FormatValue(dst []byte, v float64) []byte {
	return strconv.AppendFloat(dst, v, 'f', -1, 64)
}
