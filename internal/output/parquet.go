package output

import (
	"encoding/json"
	"io"

	"github.com/segmentio/parquet-go"
	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/pkg/models"
)

// ParquetSink writes measurements as parquet rows. The sweep configuration
// is stored in the file metadata under "config".
type ParquetSink struct {
	file   io.Closer
	writer *parquet.GenericWriter[models.Measurement]
	row    [1]models.Measurement
}

// NewParquetSink creates a parquet writer on w.
func NewParquetSink(w io.WriteCloser, cfg models.SweepConfig) *ParquetSink {
	configStr := "{}"
	if b, err := json.Marshal(cfg); err == nil {
		configStr = string(b)
	}
	return &ParquetSink{
		file: w,
		writer: parquet.NewGenericWriter[models.Measurement](w,
			parquet.KeyValueMetadata("config", configStr),
		),
	}
}

func (p *ParquetSink) Write(m models.Measurement) error {
	p.row[0] = m
	_, err := p.writer.Write(p.row[:])
	return err
}

// Close writes the footer and closes the file.
func (p *ParquetSink) Close() error {
	return multierr.Append(p.writer.Close(), p.file.Close())
}
