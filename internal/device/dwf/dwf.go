// Package dwf binds the Digilent WaveForms runtime (dwf.dll, libdwf.so,
// dwf.framework) and exposes its impedance analyzer as a device.Analyzer.
//
// The library is loaded at runtime, so binaries build without the SDK
// installed and fail only when a device is actually opened.
package dwf

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/zsweep/internal/device"
)

const (
	hdwfNone        int32 = 0
	enumFilterAll   int32 = 0
	versionBufSize        = 32
	errorBufSize          = 512
	enumNameBufSize       = 32
)

// procs holds the library entry points. Every function returns the C BOOL
// result of the call; zero means failure.
type procs struct {
	getVersion      func(buf *byte) int32
	getLastErrorMsg func(buf *byte) int32
	enum            func(filter int32, n *int32) int32
	enumDeviceName  func(idx int32, buf *byte) int32
	enumSN          func(idx int32, buf *byte) int32

	deviceOpen       func(idx int32, h *int32) int32
	deviceClose      func(h int32) int32
	autoConfigureSet func(h int32, v int32) int32

	impedanceReset func(h int32) int32
	modeSet        func(h int32, mode int32) int32
	referenceSet   func(h int32, ohm float64) int32
	frequencySet   func(h int32, hz float64) int32
	amplitudeSet   func(h int32, volts float64) int32
	configure      func(h int32, start int32) int32
	status         func(h int32, sts *uint8) int32
	statusMeasure  func(h int32, q int32, v *float64) int32
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLibrary overrides the platform default library path.
func WithLibrary(path string) Option {
	return func(a *Analyzer) {
		if path != "" {
			a.path = path
		}
	}
}

// WithIndex selects the device to open. device.FirstDevice opens the first one found.
func WithIndex(idx int) Option { return func(a *Analyzer) { a.index = idx } }

// Analyzer drives one device through the WaveForms runtime.
type Analyzer struct {
	mu    sync.Mutex
	path  string
	index int
	p     *procs
	hdwf  int32
	info  device.Info
}

var _ device.Analyzer = (*Analyzer)(nil)

// New returns an Analyzer that loads the library on first use.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		path:  defaultLibrary,
		index: device.FirstDevice,
		hdwf:  hdwfNone,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func newWithProcs(p *procs, opts ...Option) *Analyzer {
	a := New(opts...)
	a.p = p
	return a
}

func (a *Analyzer) loadLocked() error {
	if a.p != nil {
		return nil
	}
	p, err := load(a.path)
	if err != nil {
		return fmt.Errorf("load %s: %w", a.path, err)
	}
	a.p = p
	log.Info().Str("library", a.path).Str("version", a.versionLocked()).Msg("WaveForms runtime loaded")
	return nil
}

func (a *Analyzer) versionLocked() string {
	buf := make([]byte, versionBufSize)
	if a.p.getVersion(&buf[0]) == 0 {
		return ""
	}
	return toStr(buf)
}

// lastError builds a DriverError from the library's last error message.
func (a *Analyzer) lastError(op string) error {
	buf := make([]byte, errorBufSize)
	a.p.getLastErrorMsg(&buf[0])
	return &device.DriverError{Op: op, Msg: toStr(buf)}
}

func (a *Analyzer) check(op string, ok int32) error {
	if ok == 0 {
		return a.lastError(op)
	}
	return nil
}

// Enumerate lists the devices the runtime can see.
func (a *Analyzer) Enumerate() ([]device.Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(); err != nil {
		return nil, err
	}

	var n int32
	if err := a.check("FDwfEnum", a.p.enum(enumFilterAll, &n)); err != nil {
		return nil, err
	}
	version := a.versionLocked()
	infos := make([]device.Info, 0, n)
	for i := int32(0); i < n; i++ {
		name := make([]byte, enumNameBufSize)
		sn := make([]byte, enumNameBufSize)
		if err := a.check("FDwfEnumDeviceName", a.p.enumDeviceName(i, &name[0])); err != nil {
			return nil, err
		}
		if err := a.check("FDwfEnumSN", a.p.enumSN(i, &sn[0])); err != nil {
			return nil, err
		}
		infos = append(infos, device.Info{Index: int(i), Name: toStr(name), Serial: toStr(sn), Version: version})
	}
	return infos, nil
}

// Open opens the configured device.
func (a *Analyzer) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.loadLocked(); err != nil {
		return err
	}
	if a.hdwf != hdwfNone {
		return nil
	}

	var h int32
	a.p.deviceOpen(int32(a.index), &h)
	if h == hdwfNone {
		return a.lastError("FDwfDeviceOpen")
	}
	a.hdwf = h
	a.info = device.Info{Index: a.index, Version: a.versionLocked()}

	log.Info().Int("index", a.index).Int32("handle", h).Msg("Analyzer opened")
	return nil
}

// Info describes the open device.
func (a *Analyzer) Info() device.Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info
}

func (a *Analyzer) handle() (int32, error) {
	if a.p == nil || a.hdwf == hdwfNone {
		return hdwfNone, device.ErrNotOpen
	}
	return a.hdwf, nil
}

// Configure resets the impedance analyzer and applies s.
func (a *Analyzer) Configure(ctx context.Context, s device.Settings) error {
	a.mu.Lock()
	h, err := a.handle()
	if err == nil {
		err = a.configureLocked(h, s)
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return device.Sleep(ctx, s.Settle)
}

func (a *Analyzer) configureLocked(h int32, s device.Settings) error {
	if err := a.check("FDwfDeviceAutoConfigureSet", a.p.autoConfigureSet(h, device.AutoConfigureDynamic)); err != nil {
		return err
	}
	if err := a.check("FDwfAnalogImpedanceReset", a.p.impedanceReset(h)); err != nil {
		return err
	}
	if err := a.check("FDwfAnalogImpedanceModeSet", a.p.modeSet(h, int32(s.Mode))); err != nil {
		return err
	}
	if err := a.check("FDwfAnalogImpedanceReferenceSet", a.p.referenceSet(h, s.Reference)); err != nil {
		return err
	}
	if s.Frequency > 0 {
		if err := a.check("FDwfAnalogImpedanceFrequencySet", a.p.frequencySet(h, s.Frequency)); err != nil {
			return err
		}
	}
	if s.Amplitude > 0 {
		if err := a.check("FDwfAnalogImpedanceAmplitudeSet", a.p.amplitudeSet(h, s.Amplitude)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) call(op string, fn func(h int32) int32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, err := a.handle()
	if err != nil {
		return err
	}
	return a.check(op, fn(h))
}

// Start begins the measurement.
func (a *Analyzer) Start() error {
	return a.call("FDwfAnalogImpedanceConfigure", func(h int32) int32 { return a.p.configure(h, 1) })
}

// Stop ends the measurement.
func (a *Analyzer) Stop() error {
	return a.call("FDwfAnalogImpedanceConfigure", func(h int32) int32 { return a.p.configure(h, 0) })
}

func (a *Analyzer) SetFrequency(hz float64) error {
	return a.call("FDwfAnalogImpedanceFrequencySet", func(h int32) int32 { return a.p.frequencySet(h, hz) })
}

func (a *Analyzer) SetAmplitude(volts float64) error {
	return a.call("FDwfAnalogImpedanceAmplitudeSet", func(h int32) int32 { return a.p.amplitudeSet(h, volts) })
}

// Discard reads the status without storing it.
func (a *Analyzer) Discard() error {
	return a.call("FDwfAnalogImpedanceStatus", func(h int32) int32 { return a.p.status(h, nil) })
}

func (a *Analyzer) Status() (device.State, error) {
	var sts uint8
	err := a.call("FDwfAnalogImpedanceStatus", func(h int32) int32 { return a.p.status(h, &sts) })
	return device.State(sts), err
}

func (a *Analyzer) Measure(q device.Quantity) (float64, error) {
	var v float64
	err := a.call("FDwfAnalogImpedanceStatusMeasure", func(h int32) int32 { return a.p.statusMeasure(h, int32(q), &v) })
	return v, err
}

// Close releases the handle. Closing a closed analyzer is a no-op.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.p == nil || a.hdwf == hdwfNone {
		return nil
	}
	ok := a.p.deviceClose(a.hdwf)
	a.hdwf = hdwfNone
	a.info = device.Info{}
	log.Info().Msg("Analyzer closed")
	return a.check("FDwfDeviceClose", ok)
}

// toStr converts a NUL terminated C buffer.
func toStr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
