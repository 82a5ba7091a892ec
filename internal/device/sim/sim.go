// Package sim provides a simulated impedance analyzer wired to a
// Butterworth-Van Dyke DUT model (motional R-L-C branch in parallel with a
// shunt capacitance). It lets the sweep stack run without hardware.
package sim

import (
	"context"
	"math"
	"math/cmplx"
	"sync"

	"github.com/RMahshie/zsweep/internal/device"
)

// DUT is a Butterworth-Van Dyke component model. Zero L or C drops the
// corresponding element; zero C0 drops the shunt branch.
type DUT struct {
	R  float64 // Ohm
	L  float64 // H
	C  float64 // F
	C0 float64 // F
}

// Resonator is a 4 MHz piezo resonator, the kind of part the default sweep targets.
var Resonator = DUT{R: 20, L: 0.1, C: 1.5831e-14, C0: 5e-12}

// Impedance returns the complex impedance at hz.
func (d DUT) Impedance(hz float64) complex128 {
	w := 2 * math.Pi * hz
	x := 0.0
	if d.L > 0 {
		x += w * d.L
	}
	if d.C > 0 {
		x -= 1 / (w * d.C)
	}
	zm := complex(d.R, x)
	if d.C0 <= 0 {
		return zm
	}
	z0 := complex(0, -1/(w*d.C0))
	return zm * z0 / (zm + z0)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDUT replaces the default resonator.
func WithDUT(d DUT) Option { return func(a *Analyzer) { a.dut = d } }

// WithPolls sets how many status polls a capture takes to complete.
func WithPolls(n int) Option { return func(a *Analyzer) { a.polls = n } }

// WithFailure makes the named operation fail with a driver error after
// `after` successful calls. Operation names follow the DWF entry points,
// e.g. "FDwfAnalogImpedanceStatus".
func WithFailure(op string, after int, msg string) Option {
	return func(a *Analyzer) {
		a.failOp = op
		a.failAfter = after
		a.failMsg = msg
	}
}

// Analyzer is a simulated device.Analyzer.
type Analyzer struct {
	mu sync.Mutex

	dut   DUT
	polls int

	failOp    string
	failAfter int
	failMsg   string
	opCalls   map[string]int

	open       bool
	running    bool
	frequency  float64
	amplitude  float64
	pending    int
	captured   bool
	capturedHz float64

	history []float64
}

var _ device.Analyzer = (*Analyzer)(nil)

// New returns a simulated analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		dut:     Resonator,
		polls:   3,
		opCalls: make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) fault(op string) error {
	a.opCalls[op]++
	if op == a.failOp && a.opCalls[op] > a.failAfter {
		return &device.DriverError{Op: op, Msg: a.failMsg}
	}
	return nil
}

func (a *Analyzer) guard(op string) error {
	if !a.open {
		return device.ErrNotOpen
	}
	return a.fault(op)
}

func (a *Analyzer) Enumerate() ([]device.Info, error) {
	return []device.Info{a.describe()}, nil
}

func (a *Analyzer) describe() device.Info {
	return device.Info{Index: 0, Name: "Simulated Analog Discovery 2", Serial: "SN:SIMULATED", Version: "sim"}
}

func (a *Analyzer) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fault("FDwfDeviceOpen"); err != nil {
		return err
	}
	a.open = true
	return ctx.Err()
}

func (a *Analyzer) Info() device.Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return device.Info{}
	}
	return a.describe()
}

func (a *Analyzer) Configure(ctx context.Context, s device.Settings) error {
	a.mu.Lock()
	if err := a.guard("FDwfAnalogImpedanceReset"); err != nil {
		a.mu.Unlock()
		return err
	}
	a.running = false
	a.captured = false
	if s.Frequency > 0 {
		a.frequency = s.Frequency
	}
	if s.Amplitude > 0 {
		a.amplitude = s.Amplitude
	}
	a.mu.Unlock()
	return device.Sleep(ctx, s.Settle)
}

func (a *Analyzer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceConfigure"); err != nil {
		return err
	}
	a.running = true
	a.rearm()
	return nil
}

func (a *Analyzer) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceConfigure"); err != nil {
		return err
	}
	a.running = false
	return nil
}

func (a *Analyzer) rearm() {
	a.pending = a.polls
	a.captured = false
}

func (a *Analyzer) SetFrequency(hz float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceFrequencySet"); err != nil {
		return err
	}
	a.frequency = hz
	a.history = append(a.history, hz)
	a.rearm()
	return nil
}

func (a *Analyzer) SetAmplitude(volts float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceAmplitudeSet"); err != nil {
		return err
	}
	a.amplitude = volts
	a.rearm()
	return nil
}

func (a *Analyzer) Discard() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceStatus"); err != nil {
		return err
	}
	a.rearm()
	return nil
}

func (a *Analyzer) Status() (device.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceStatus"); err != nil {
		return device.StateReady, err
	}
	if !a.running {
		return device.StateReady, nil
	}
	if a.pending > 0 {
		a.pending--
		return device.StateTriggered, nil
	}
	a.captured = true
	a.capturedHz = a.frequency
	return device.StateDone, nil
}

// Measure returns the DUT reading of the last completed capture. Phase
// quantities are in radians, like the driver reports them.
func (a *Analyzer) Measure(q device.Quantity) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guard("FDwfAnalogImpedanceStatusMeasure"); err != nil {
		return 0, err
	}
	if !a.captured {
		return 0, &device.DriverError{Op: "FDwfAnalogImpedanceStatusMeasure", Msg: "no capture available"}
	}

	z := a.dut.Impedance(a.capturedHz)
	switch q {
	case device.Impedance:
		return cmplx.Abs(z), nil
	case device.ImpedancePhase:
		return cmplx.Phase(z), nil
	}
	return 0, &device.DriverError{Op: "FDwfAnalogImpedanceStatusMeasure", Msg: "unknown measurement"}
}

func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return nil
	}
	a.open = false
	a.running = false
	return a.fault("FDwfDeviceClose")
}

// Visited returns a copy of the frequencies set so far.
func (a *Analyzer) Visited() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.history...)
}

// Amplitude returns the last stimulus amplitude in volts.
func (a *Analyzer) Amplitude() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.amplitude
}

// Running reports whether a measurement is in progress.
func (a *Analyzer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
