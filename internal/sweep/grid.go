package sweep

import (
	"math"

	"github.com/RMahshie/zsweep/pkg/models"
)

// tolerance keeps an end point that floating point steps land just past.
const tolerance = 1e-9

// Frequencies returns the frequencies of an increasing pass.
//
// Linear grids run start, start+step, ... up to and including end when it
// lies on the grid. Logarithmic grids place FreqPoints points between start
// and end, both included.
func Frequencies(cfg models.SweepConfig) []float64 {
	if cfg.Scale == models.ScaleLog {
		return logGrid(cfg.FreqStart, cfg.FreqEnd, cfg.FreqPoints)
	}
	return linearGrid(cfg.FreqStart, cfg.FreqEnd, cfg.FreqStep)
}

// DecreasingFrequencies returns the frequencies of a decreasing pass. A
// linear pass starts at end and steps down while at or above start, so it
// only mirrors the increasing pass when the span is a multiple of the step.
func DecreasingFrequencies(cfg models.SweepConfig) []float64 {
	if cfg.Scale == models.ScaleLog {
		return reversed(logGrid(cfg.FreqStart, cfg.FreqEnd, cfg.FreqPoints))
	}
	if cfg.FreqStep <= 0 || cfg.FreqStart > cfg.FreqEnd {
		return nil
	}
	n := steps(cfg.FreqEnd-cfg.FreqStart, cfg.FreqStep)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cfg.FreqEnd-float64(i)*cfg.FreqStep)
	}
	return out
}

// Amplitudes returns the stimulus amplitudes in mV, both ends included.
func Amplitudes(cfg models.SweepConfig) []int {
	if cfg.AmpStart > cfg.AmpEnd {
		return nil
	}
	if cfg.AmpStep <= 0 || cfg.AmpStart == cfg.AmpEnd {
		return []int{cfg.AmpStart}
	}
	n := (cfg.AmpEnd-cfg.AmpStart)/cfg.AmpStep + 1
	if n > models.MaxPoints {
		return nil
	}
	out := make([]int, 0, n)
	for a := cfg.AmpStart; a <= cfg.AmpEnd; a += cfg.AmpStep {
		out = append(out, a)
	}
	return out
}

// Points returns the number of measurements a sweep takes.
func Points(cfg models.SweepConfig) int {
	per := len(Frequencies(cfg))
	if cfg.Decrease {
		per += len(DecreasingFrequencies(cfg))
	}
	return per * len(Amplitudes(cfg))
}

// steps returns the number of points of a linear grid, or 0 when the grid
// is not finite or larger than models.MaxPoints.
func steps(span, step float64) int {
	n := math.Floor(span/step+tolerance) + 1
	if math.IsNaN(n) || n > models.MaxPoints {
		return 0
	}
	return int(n)
}

func linearGrid(start, end, step float64) []float64 {
	if step <= 0 || start > end {
		return nil
	}
	n := steps(end-start, step)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start+float64(i)*step)
	}
	return out
}

func logGrid(start, end float64, n int) []float64 {
	if n < 2 || n > models.MaxPoints || start <= 0 || start > end {
		return nil
	}
	span := math.Log10(end / start)
	out := make([]float64, n)
	for i := range out {
		out[i] = end * math.Pow(10, (float64(i)/float64(n-1)-1)*span)
	}
	out[0], out[n-1] = start, end
	return out
}

func reversed(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
