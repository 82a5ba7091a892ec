package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/internal/sweep"
	"github.com/RMahshie/zsweep/pkg/models"
)

// Format is a result file format.
type Format string

const (
	FormatText    Format = "txt"
	FormatParquet Format = "parquet"
)

// ParseFormats parses a comma separated format list such as "txt,parquet".
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	for _, f := range strings.Split(s, ",") {
		switch Format(strings.TrimSpace(strings.ToLower(f))) {
		case "":
		case FormatText, "text":
			out = append(out, FormatText)
		case FormatParquet:
			out = append(out, FormatParquet)
		default:
			return nil, fmt.Errorf("unknown output format %q", f)
		}
	}
	if len(out) == 0 {
		return []Format{FormatText}, nil
	}
	return out, nil
}

// BaseName returns the result file name without extension, e.g.
// "impedance_100mV_1000Ohm_Inc".
func BaseName(amplitude int, reference float64, dir models.Direction) string {
	return fmt.Sprintf("impedance_%dmV_%sOhm_%s", amplitude, strconv.FormatFloat(reference, 'f', -1, 64), dir.Suffix())
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFormats selects the file formats written for every pass.
func WithFormats(formats ...Format) FactoryOption {
	return func(f *Factory) {
		if len(formats) > 0 {
			f.formats = formats
		}
	}
}

// WithHeader writes a column header line at the top of text files.
func WithHeader() FactoryOption { return func(f *Factory) { f.header = true } }

// WithPlot renders a PNG next to the data files for every pass.
func WithPlot() FactoryOption { return func(f *Factory) { f.plot = true } }

// Factory creates the result files of one sweep inside a directory.
type Factory struct {
	dir     string
	cfg     models.SweepConfig
	formats []Format
	header  bool
	plot    bool

	mu    sync.Mutex
	files []string
}

var _ sweep.SinkFactory = (*Factory)(nil)

// NewFactory creates dir if needed and returns a factory writing into it.
func NewFactory(dir string, cfg models.SweepConfig, opts ...FactoryOption) (*Factory, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f := &Factory{dir: dir, cfg: cfg, formats: []Format{FormatText}}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Open creates the files for one pass.
func (f *Factory) Open(amplitude int, dir models.Direction) (sweep.Sink, error) {
	base := filepath.Join(f.dir, BaseName(amplitude, f.cfg.Reference, dir))
	var sinks MultiSink
	fail := func(err error) (sweep.Sink, error) {
		return nil, multierr.Append(err, sinks.Close())
	}

	for _, format := range f.formats {
		path := base + "." + string(format)
		file, err := os.Create(path)
		if err != nil {
			return fail(err)
		}
		switch format {
		case FormatParquet:
			sinks = append(sinks, NewParquetSink(file, f.cfg))
		default:
			s, err := NewTextSink(file, f.header)
			if err != nil {
				file.Close()
				return fail(err)
			}
			sinks = append(sinks, s)
		}
		f.record(path)
	}
	if f.plot {
		path := base + ".png"
		title := fmt.Sprintf("Impedance and phase, %d mV, %s Ohm reference", amplitude, strconv.FormatFloat(f.cfg.Reference, 'f', -1, 64))
		sinks = append(sinks, NewPlotSink(path, title))
		f.record(path)
	}
	return sinks, nil
}

func (f *Factory) record(path string) {
	f.mu.Lock()
	f.files = append(f.files, path)
	f.mu.Unlock()
}

// Files returns the paths created so far.
func (f *Factory) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files...)
}

// MultiSink fans measurements out to several sinks.
type MultiSink []sweep.Sink

func (m MultiSink) Write(row models.Measurement) error {
	for _, s := range m {
		if err := s.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and combines their errors.
func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}
