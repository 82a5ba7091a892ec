package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is wrapped by every sweep configuration validation failure
var ErrInvalidConfig = errors.New("invalid sweep configuration")

// MaxPoints bounds the measurements of one sweep across all amplitudes and passes
const MaxPoints = 1_000_000

// Frequency scales
const (
	ScaleLinear = "linear"
	ScaleLog    = "log"
)

// Instrument wiring modes
const (
	ModeDUTFirst  = 0 // W1-C1-DUT-C2-R-GND
	ModeRefFirst  = 1 // W1-C1-R-C2-DUT-GND
	ModeIAAdapter = 8 // Impedance Analyzer adapter
)

// Sweep statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// SweepConfig holds the parameters of a frequency/amplitude sweep
type SweepConfig struct {
	FreqStart  float64 `json:"freq_start" mapstructure:"freq_start" doc:"Start frequency in Hz"`
	FreqEnd    float64 `json:"freq_end" mapstructure:"freq_end" doc:"End frequency in Hz"`
	FreqStep   float64 `json:"freq_step,omitempty" mapstructure:"freq_step" doc:"Frequency step in Hz (linear scale)"`
	FreqPoints int     `json:"freq_points,omitempty" mapstructure:"freq_points" doc:"Number of frequency points (log scale)"`
	Scale      string  `json:"scale" mapstructure:"scale" enum:"linear,log" doc:"Frequency scale"`

	AmpStart int `json:"amp_start" mapstructure:"amp_start" doc:"Start amplitude in mV"`
	AmpEnd   int `json:"amp_end" mapstructure:"amp_end" doc:"End amplitude in mV"`
	AmpStep  int `json:"amp_step,omitempty" mapstructure:"amp_step" doc:"Amplitude step in mV"`

	Reference float64 `json:"reference" mapstructure:"reference" doc:"Reference resistor in Ohm"`
	Decrease  bool    `json:"decrease" mapstructure:"decrease" doc:"Repeat every amplitude with decreasing frequency"`
	Mode      int     `json:"mode" mapstructure:"mode" enum:"0,1,8" doc:"Wiring mode: 0 W1-C1-DUT-C2-R-GND, 1 W1-C1-R-C2-DUT-GND, 8 IA adapter"`
	SettleMS  int     `json:"settle_ms" mapstructure:"settle_ms" minimum:"0" doc:"Settle time after each frequency change in ms"`
}

// DefaultSweepConfig returns the parameters the bench form starts with
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		FreqStart: 3.5e6,
		FreqEnd:   4.5e6,
		FreqStep:  10000,
		Scale:     ScaleLinear,
		AmpStart:  100,
		AmpEnd:    100,
		AmpStep:   100,
		Reference: 1000,
		Mode:      ModeIAAdapter,
		SettleMS:  10,
	}
}

// Settle returns the settle time as a duration
func (c SweepConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// Validate checks the configuration and returns an error wrapping ErrInvalidConfig
func (c SweepConfig) Validate() error {
	if !finite(c.FreqStart) || !finite(c.FreqEnd) {
		return fmt.Errorf("%w: frequencies must be finite", ErrInvalidConfig)
	}
	if c.FreqStart <= 0 {
		return fmt.Errorf("%w: start frequency must be positive", ErrInvalidConfig)
	}
	if c.FreqStart > c.FreqEnd {
		return fmt.Errorf("%w: start frequency %g Hz is above end frequency %g Hz", ErrInvalidConfig, c.FreqStart, c.FreqEnd)
	}

	switch c.Scale {
	case ScaleLinear, "":
		if !finite(c.FreqStep) || c.FreqStep <= 0 {
			return fmt.Errorf("%w: frequency step must be positive", ErrInvalidConfig)
		}
	case ScaleLog:
		if c.FreqPoints < 2 {
			return fmt.Errorf("%w: logarithmic sweep needs at least 2 points", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown scale %q", ErrInvalidConfig, c.Scale)
	}

	if c.AmpStart <= 0 {
		return fmt.Errorf("%w: start amplitude must be positive", ErrInvalidConfig)
	}
	if c.AmpStart > c.AmpEnd {
		return fmt.Errorf("%w: start amplitude %d mV is above end amplitude %d mV", ErrInvalidConfig, c.AmpStart, c.AmpEnd)
	}
	if c.AmpStart < c.AmpEnd && c.AmpStep <= 0 {
		return fmt.Errorf("%w: amplitude step must be positive", ErrInvalidConfig)
	}
	if c.AmpStep < 0 {
		return fmt.Errorf("%w: amplitude step must not be negative", ErrInvalidConfig)
	}

	if !finite(c.Reference) || c.Reference <= 0 {
		return fmt.Errorf("%w: reference resistance must be positive", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModeDUTFirst, ModeRefFirst, ModeIAAdapter:
	default:
		return fmt.Errorf("%w: unsupported mode %d", ErrInvalidConfig, c.Mode)
	}
	if c.SettleMS < 0 {
		return fmt.Errorf("%w: settle time must not be negative", ErrInvalidConfig)
	}
	if n := c.pointCount(); n > MaxPoints {
		return fmt.Errorf("%w: sweep has %.0f points, at most %d allowed", ErrInvalidConfig, n, MaxPoints)
	}

	return nil
}

// pointCount estimates the number of measurements in floating point so
// huge grids are caught before anything is allocated.
func (c SweepConfig) pointCount() float64 {
	freqs := float64(c.FreqPoints)
	if c.Scale != ScaleLog {
		freqs = math.Floor((c.FreqEnd-c.FreqStart)/c.FreqStep+1e-9) + 1 // same tolerance as the grid builder
	}
	amps := 1.0
	if c.AmpStep > 0 && c.AmpStart < c.AmpEnd {
		amps = math.Floor(float64(c.AmpEnd-c.AmpStart)/float64(c.AmpStep)) + 1
	}
	passes := 1.0
	if c.Decrease {
		passes = 2
	}
	return freqs * amps * passes
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sweep represents a sweep run (for internal use)
type Sweep struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Progress    int         `json:"progress"`
	Config      SweepConfig `json:"config"`
	Device      string      `json:"device,omitempty"`
	Files       []string    `json:"files,omitempty"`
	ObjectKeys  []string    `json:"object_keys,omitempty"`
	ErrorMsg    *string     `json:"error_message,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Finished reports whether the sweep reached a terminal status
func (s *Sweep) Finished() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
