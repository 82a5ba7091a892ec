// Package sweep runs frequency/amplitude sweeps on an impedance analyzer.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/internal/device"
	"github.com/RMahshie/zsweep/pkg/models"
)

// ErrPollTimeout is returned when a capture does not complete in time.
var ErrPollTimeout = errors.New("timed out waiting for capture")

// Sink receives the measurements of one pass.
type Sink interface {
	Write(m models.Measurement) error
	Close() error
}

// SinkFactory opens the sink for one (amplitude, direction) pass.
type SinkFactory interface {
	Open(amplitude int, dir models.Direction) (Sink, error)
}

// SinkFactoryFunc adapts a function to SinkFactory.
type SinkFactoryFunc func(amplitude int, dir models.Direction) (Sink, error)

func (f SinkFactoryFunc) Open(amplitude int, dir models.Direction) (Sink, error) {
	return f(amplitude, dir)
}

// Progress is reported after every measurement.
type Progress struct {
	Done        int
	Total       int
	Measurement models.Measurement
}

// Percent returns the completed share of the sweep, 0 to 100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

// Observer is notified of progress; it runs on the sweep goroutine.
type Observer func(Progress)

type passPlan struct {
	dir   models.Direction
	freqs []float64
}

// Result summarises a finished sweep.
type Result struct {
	Points  int
	Elapsed time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPollTimeout bounds the wait for a single capture. Zero waits forever.
func WithPollTimeout(d time.Duration) RunnerOption { return func(r *Runner) { r.pollTimeout = d } }

// WithPollInterval sleeps between status polls. Zero polls back to back.
func WithPollInterval(d time.Duration) RunnerOption { return func(r *Runner) { r.pollInterval = d } }

// WithConfigureSettle sets the wait after configuring the bridge.
func WithConfigureSettle(d time.Duration) RunnerOption {
	return func(r *Runner) { r.configureSettle = d }
}

// WithPassStart calls fn before each (amplitude, direction) pass touches the analyzer.
func WithPassStart(fn func(amplitude int, dir models.Direction)) RunnerOption {
	return func(r *Runner) { r.passStart = fn }
}

// Runner drives one analyzer through sweeps.
type Runner struct {
	dev             device.Analyzer
	pollTimeout     time.Duration
	pollInterval    time.Duration
	configureSettle time.Duration
	passStart       func(amplitude int, dir models.Direction)
}

// NewRunner creates a runner for an open analyzer.
func NewRunner(dev device.Analyzer, opts ...RunnerOption) *Runner {
	r := &Runner{
		dev:             dev,
		pollTimeout:     10 * time.Second,
		configureSettle: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure validates cfg and applies the bridge settings: mode, reference
// resistor, first frequency and first amplitude.
func (r *Runner) Configure(ctx context.Context, cfg models.SweepConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings := device.Settings{
		Mode:      cfg.Mode,
		Reference: cfg.Reference,
		Frequency: cfg.FreqStart,
		Amplitude: millivolts(cfg.AmpStart),
		Settle:    r.configureSettle,
	}
	if err := r.dev.Configure(ctx, settings); err != nil {
		return fmt.Errorf("configure analyzer: %w", err)
	}
	log.Info().
		Int("mode", cfg.Mode).
		Float64("reference", cfg.Reference).
		Bool("decrease", cfg.Decrease).
		Msg("Analyzer parameters set")
	return nil
}

// Run performs the sweep on a configured analyzer. For every amplitude it
// runs an increasing pass and, when cfg.Decrease is set, a decreasing pass
// after all increasing passes. The measurement is stopped on every return.
func (r *Runner) Run(ctx context.Context, cfg models.SweepConfig, sinks SinkFactory, observe Observer) (res Result, err error) {
	if err := cfg.Validate(); err != nil {
		return res, err
	}
	started := time.Now()
	total := Points(cfg)

	if err := r.dev.Start(); err != nil {
		return res, fmt.Errorf("start measurement: %w", err)
	}
	defer func() {
		if stopErr := r.dev.Stop(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("stop measurement: %w", stopErr))
		}
		res.Elapsed = time.Since(started)
	}()

	passes := []passPlan{{models.DirectionIncrease, Frequencies(cfg)}}
	if cfg.Decrease {
		passes = append(passes, passPlan{models.DirectionDecrease, DecreasingFrequencies(cfg)})
	}

	for _, pass := range passes {
		for _, amp := range Amplitudes(cfg) {
			n, err := r.runPass(ctx, cfg, amp, pass.dir, pass.freqs, sinks, func(m models.Measurement) {
				res.Points++
				if observe != nil {
					observe(Progress{Done: res.Points, Total: total, Measurement: m})
				}
			})
			if err != nil {
				return res, err
			}
			log.Info().Int("amplitude_mv", amp).Str("direction", string(pass.dir)).Int("points", n).Msg("Sweep pass finished")
		}
	}
	return res, nil
}

func (r *Runner) runPass(ctx context.Context, cfg models.SweepConfig, amp int, dir models.Direction, freqs []float64, sinks SinkFactory, emit func(models.Measurement)) (n int, err error) {
	log.Info().Int("amplitude_mv", amp).Str("direction", string(dir)).Msg("Start measurement")
	if r.passStart != nil {
		r.passStart(amp, dir)
	}

	sink, err := sinks.Open(amp, dir)
	if err != nil {
		return 0, fmt.Errorf("open output for %d mV: %w", amp, err)
	}
	defer func() {
		err = multierr.Append(err, sink.Close())
	}()

	if err := r.dev.SetAmplitude(millivolts(amp)); err != nil {
		return 0, fmt.Errorf("set amplitude %d mV: %w", amp, err)
	}

	for _, hz := range freqs {
		m, err := r.measure(ctx, cfg, hz)
		if err != nil {
			return n, err
		}
		m.Amplitude = amp
		m.Direction = dir
		if err := sink.Write(m); err != nil {
			return n, fmt.Errorf("write measurement: %w", err)
		}
		n++
		emit(m)
	}
	return n, nil
}

// measure sets the frequency, waits for the DUT to settle, drops the capture
// taken with the old settings and reads impedance and phase from a fresh one.
func (r *Runner) measure(ctx context.Context, cfg models.SweepConfig, hz float64) (models.Measurement, error) {
	m := models.Measurement{Frequency: hz}
	if err := r.dev.SetFrequency(hz); err != nil {
		return m, fmt.Errorf("set frequency %g Hz: %w", hz, err)
	}
	if err := device.Sleep(ctx, cfg.Settle()); err != nil {
		return m, err
	}
	if err := r.dev.Discard(); err != nil {
		return m, fmt.Errorf("discard capture: %w", err)
	}
	if err := r.waitDone(ctx); err != nil {
		return m, fmt.Errorf("capture at %g Hz: %w", hz, err)
	}

	z, err := r.dev.Measure(device.Impedance)
	if err != nil {
		return m, fmt.Errorf("read impedance: %w", err)
	}
	ph, err := r.dev.Measure(device.ImpedancePhase)
	if err != nil {
		return m, fmt.Errorf("read phase: %w", err)
	}
	m.Impedance = math.Abs(z)
	m.Phase = ph / math.Pi * 180

	log.Debug().Float64("frequency", hz).Float64("impedance", m.Impedance).Float64("phase", m.Phase).Msg("Measured")
	return m, nil
}

func (r *Runner) waitDone(ctx context.Context) error {
	var deadline time.Time
	if r.pollTimeout > 0 {
		deadline = time.Now().Add(r.pollTimeout)
	}
	for {
		st, err := r.dev.Status()
		if err != nil {
			return err
		}
		if st == device.StateDone {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w (last state %s)", ErrPollTimeout, st)
		}
		if r.pollInterval > 0 {
			if err := device.Sleep(ctx, r.pollInterval); err != nil {
				return err
			}
		}
	}
}

func millivolts(mv int) float64 {
	return float64(mv) / 1000
}
