package config

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/zsweep/internal/device"
	"github.com/RMahshie/zsweep/internal/device/dwf"
	"github.com/RMahshie/zsweep/internal/device/sim"
	"github.com/RMahshie/zsweep/internal/output"
	"github.com/RMahshie/zsweep/internal/storage"
	"github.com/RMahshie/zsweep/internal/sweep"
)

// SetupLogging configures the global zerolog logger. The dev environment
// logs to a console writer, everything else logs JSON.
func SetupLogging(level, env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "dev" || env == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Analyzer returns the simulated bench or the DWF binding
func (d DeviceConfig) Analyzer() device.Analyzer {
	if d.Simulate {
		log.Info().Msg("Using simulated analyzer")
		return sim.New()
	}
	return dwf.New(dwf.WithLibrary(d.Library), dwf.WithIndex(d.Index))
}

// RunnerOptions returns the sweep runner tuning
func (d DeviceConfig) RunnerOptions() []sweep.RunnerOption {
	return []sweep.RunnerOption{
		sweep.WithPollTimeout(d.PollTimeout),
		sweep.WithPollInterval(d.PollInterval),
		sweep.WithConfigureSettle(d.ConfigureSettle),
	}
}

// FactoryOptions returns the result file options
func (o OutputConfig) FactoryOptions() ([]output.FactoryOption, error) {
	formats, err := output.ParseFormats(o.Formats)
	if err != nil {
		return nil, err
	}
	opts := []output.FactoryOption{output.WithFormats(formats...)}
	if o.Header {
		opts = append(opts, output.WithHeader())
	}
	if o.Plot {
		opts = append(opts, output.WithPlot())
	}
	return opts, nil
}

// Store returns the configured result store, or nil when no bucket is set
func (s StorageConfig) Store(ctx context.Context) (storage.ResultStore, error) {
	if s.Bucket == "" {
		return nil, nil
	}
	return storage.New(ctx, storage.Config{
		Backend:   s.Backend,
		Bucket:    s.Bucket,
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKeyID,
		SecretKey: s.SecretAccessKey,
		UseSSL:    s.UseSSL,
	})
}
