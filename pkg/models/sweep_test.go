package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSweepConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *SweepConfig)
		wantErr bool
	}{
		{
			name:   "defaults",
			modify: func(c *SweepConfig) {},
		},
		{
			name:    "start frequency above end",
			modify:  func(c *SweepConfig) { c.FreqStart, c.FreqEnd = 5e6, 4e6 },
			wantErr: true,
		},
		{
			name:   "single frequency",
			modify: func(c *SweepConfig) { c.FreqEnd = c.FreqStart },
		},
		{
			name:    "zero start frequency",
			modify:  func(c *SweepConfig) { c.FreqStart = 0 },
			wantErr: true,
		},
		{
			name:    "NaN start frequency",
			modify:  func(c *SweepConfig) { c.FreqStart = math.NaN() },
			wantErr: true,
		},
		{
			name:    "infinite end frequency",
			modify:  func(c *SweepConfig) { c.FreqEnd = math.Inf(1) },
			wantErr: true,
		},
		{
			name:    "zero frequency step",
			modify:  func(c *SweepConfig) { c.FreqStep = 0 },
			wantErr: true,
		},
		{
			name:    "negative frequency step",
			modify:  func(c *SweepConfig) { c.FreqStep = -100 },
			wantErr: true,
		},
		{
			name:    "NaN frequency step",
			modify:  func(c *SweepConfig) { c.FreqStep = math.NaN() },
			wantErr: true,
		},
		{
			name: "log scale with two points",
			modify: func(c *SweepConfig) {
				c.Scale, c.FreqPoints, c.FreqStep = ScaleLog, 2, 0
			},
		},
		{
			name:    "log scale with one point",
			modify:  func(c *SweepConfig) { c.Scale, c.FreqPoints = ScaleLog, 1 },
			wantErr: true,
		},
		{
			name:    "unknown scale",
			modify:  func(c *SweepConfig) { c.Scale = "octave" },
			wantErr: true,
		},
		{
			name:    "start amplitude above end",
			modify:  func(c *SweepConfig) { c.AmpStart, c.AmpEnd = 300, 100 },
			wantErr: true,
		},
		{
			name:    "zero amplitude step with a range",
			modify:  func(c *SweepConfig) { c.AmpStart, c.AmpEnd, c.AmpStep = 100, 300, 0 },
			wantErr: true,
		},
		{
			name:   "zero amplitude step with a single amplitude",
			modify: func(c *SweepConfig) { c.AmpStart, c.AmpEnd, c.AmpStep = 200, 200, 0 },
		},
		{
			name:    "negative amplitude step",
			modify:  func(c *SweepConfig) { c.AmpStep = -100 },
			wantErr: true,
		},
		{
			name:    "zero start amplitude",
			modify:  func(c *SweepConfig) { c.AmpStart = 0 },
			wantErr: true,
		},
		{
			name:    "zero reference",
			modify:  func(c *SweepConfig) { c.Reference = 0 },
			wantErr: true,
		},
		{
			name:    "infinite reference",
			modify:  func(c *SweepConfig) { c.Reference = math.Inf(1) },
			wantErr: true,
		},
		{
			name:    "unsupported mode",
			modify:  func(c *SweepConfig) { c.Mode = 2 },
			wantErr: true,
		},
		{
			name:    "negative settle",
			modify:  func(c *SweepConfig) { c.SettleMS = -1 },
			wantErr: true,
		},
		{
			name: "oversized linear grid",
			modify: func(c *SweepConfig) {
				c.FreqStart, c.FreqEnd, c.FreqStep = 1, 1e12, 1e-9
			},
			wantErr: true,
		},
		{
			name: "point limit reached",
			modify: func(c *SweepConfig) {
				c.FreqStart, c.FreqEnd, c.FreqStep = 1, MaxPoints, 1
			},
		},
		{
			name: "point limit exceeded by decreasing passes",
			modify: func(c *SweepConfig) {
				c.FreqStart, c.FreqEnd, c.FreqStep = 1, MaxPoints, 1
				c.Decrease = true
			},
			wantErr: true,
		},
		{
			name: "point limit exceeded by amplitudes",
			modify: func(c *SweepConfig) {
				c.FreqStart, c.FreqEnd, c.FreqStep = 1, 1000, 1
				c.AmpStart, c.AmpEnd, c.AmpStep = 1, 1001, 1
			},
			wantErr: true,
		},
		{
			name:    "oversized log grid",
			modify:  func(c *SweepConfig) { c.Scale, c.FreqPoints = ScaleLog, MaxPoints+1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSweepConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSweepConfig_Settle(t *testing.T) {
	cfg := DefaultSweepConfig()
	cfg.SettleMS = 25
	assert.Equal(t, 25*time.Millisecond, cfg.Settle())
}

func TestSweep_Finished(t *testing.T) {
	for status, want := range map[string]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	} {
		assert.Equal(t, want, (&Sweep{Status: status}).Finished(), status)
	}
}
