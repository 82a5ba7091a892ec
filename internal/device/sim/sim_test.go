package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/zsweep/internal/device"
)

func TestDUT_Impedance(t *testing.T) {
	r := DUT{R: 1000}
	assert.Equal(t, complex(1000, 0), r.Impedance(1e3))

	c := DUT{C: 1e-6}
	z := c.Impedance(1e3)
	assert.InDelta(t, 0, real(z), 1e-9)
	assert.InDelta(t, -1/(2*math.Pi*1e3*1e-6), imag(z), 1e-9)

	// At series resonance the motional branch is purely resistive.
	rlc := DUT{R: 20, L: 0.1, C: 1.5831e-14}
	fs := 1 / (2 * math.Pi * math.Sqrt(rlc.L*rlc.C))
	assert.InDelta(t, 20, real(rlc.Impedance(fs)), 1e-3)
	assert.InDelta(t, 0, imag(rlc.Impedance(fs)), 1e-2)
}

func TestAnalyzer_CaptureCycle(t *testing.T) {
	a := New(WithDUT(DUT{R: 50}), WithPolls(2))
	ctx := context.Background()

	_, err := a.Status()
	assert.ErrorIs(t, err, device.ErrNotOpen)

	require.NoError(t, a.Open(ctx))
	require.NoError(t, a.Configure(ctx, device.Settings{Mode: 8, Reference: 1000, Frequency: 1e3}))
	require.NoError(t, a.Start())
	require.NoError(t, a.SetFrequency(2e3))
	require.NoError(t, a.Discard())

	_, err = a.Measure(device.Impedance)
	require.Error(t, err)

	states := []device.State{}
	for i := 0; i < 3; i++ {
		st, err := a.Status()
		require.NoError(t, err)
		states = append(states, st)
	}
	assert.Equal(t, []device.State{device.StateTriggered, device.StateTriggered, device.StateDone}, states)

	z, err := a.Measure(device.Impedance)
	require.NoError(t, err)
	assert.InDelta(t, 50, z, 1e-9)

	ph, err := a.Measure(device.ImpedancePhase)
	require.NoError(t, err)
	assert.InDelta(t, 0, ph, 1e-9)

	_, err = a.Measure(device.Quantity(7))
	var derr *device.DriverError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "unknown measurement", derr.Msg)

	assert.Equal(t, []float64{2e3}, a.Visited())
	require.NoError(t, a.Stop())
	assert.False(t, a.Running())
	require.NoError(t, a.Close())
}

func TestAnalyzer_InjectedFailure(t *testing.T) {
	a := New(WithFailure("FDwfAnalogImpedanceStatus", 1, "Device disconnected"))
	require.NoError(t, a.Open(context.Background()))
	require.NoError(t, a.Start())

	_, err := a.Status()
	require.NoError(t, err)

	_, err = a.Status()
	var derr *device.DriverError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "Device disconnected", derr.Msg)
}
