// Package device defines the impedance analyzer contract used by the sweep
// engine. The DWF binding lives in device/dwf and a simulated bench in
// device/sim.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/zsweep/pkg/models"
)

// State is the instrument acquisition state byte reported by the status call.
type State uint8

// Acquisition states as defined by the DWF library.
const (
	StateReady     State = 0
	StateArmed     State = 1
	StateDone      State = 2
	StateTriggered State = 3
	StateConfig    State = 4
	StatePrefill   State = 5
	StateWait      State = 7
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateArmed:
		return "armed"
	case StateDone:
		return "done"
	case StateTriggered:
		return "triggered"
	case StateConfig:
		return "config"
	case StatePrefill:
		return "prefill"
	case StateWait:
		return "wait"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Quantity selects what StatusMeasure reads from the last capture.
type Quantity int32

const (
	Impedance Quantity = iota
	ImpedancePhase
)

// AutoConfigureDynamic lets analog out settings change while running.
const AutoConfigureDynamic = 3

// FirstDevice selects the first available device on Open.
const FirstDevice = -1

// ErrNotOpen is returned by calls made without an open handle.
var ErrNotOpen = errors.New("device not open")

// DriverError carries the message the vendor library reported for a failed call.
type DriverError struct {
	Op  string
	Msg string
}

func (e *DriverError) Error() string {
	if e.Msg == "" {
		return e.Op + " failed"
	}
	return e.Op + ": " + e.Msg
}

// Info describes an attached instrument.
type Info = models.DeviceInfo

// Settings is the bridge configuration applied before a sweep.
type Settings struct {
	Mode      int
	Reference float64 // Ohm
	Frequency float64 // Hz
	Amplitude float64 // V, 0 to peak
	Settle    time.Duration
}

// Analyzer is one impedance analyzer handle.
type Analyzer interface {
	Enumerate() ([]Info, error)
	Open(ctx context.Context) error
	Info() Info
	Configure(ctx context.Context, s Settings) error
	Start() error
	Stop() error
	SetFrequency(hz float64) error
	SetAmplitude(volts float64) error
	// Discard drops the capture in flight so the next one reflects new settings.
	Discard() error
	Status() (State, error)
	Measure(q Quantity) (float64, error)
	Close() error
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
