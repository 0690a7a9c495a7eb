package cct

import (
	"fmt"
	"math"
)

// Metrics summarizes one receive waveform.
type Metrics struct {
	// PeakV is the largest excursion from the starting level.
	PeakV float64
	// SettledV is the value at the end of the analysis window.
	SettledV float64
	// IntegralVs is the trapezoidal integral of the waveform in
	// volt-seconds.
	IntegralVs float64
	// ISIRatio is the fraction of the integral arriving after the first
	// unit interval. A clean channel delivers most of its energy inside
	// the first interval, so larger values mean more inter-symbol
	// interference.
	ISIRatio float64
}

// trapezoid integrates v over time between sample indices lo and hi.
func trapezoid(time, v []float64, lo, hi int) float64 {
	sum := 0.0
	for i := lo + 1; i <= hi; i++ {
		sum += (v[i] + v[i-1]) / 2 * (time[i] - time[i-1])
	}
	return sum
}

// Analyze computes the waveform metrics for one trace. ui is the unit
// interval in seconds; it splits the integral for the ISI ratio.
func Analyze(time, v []float64, ui float64) (Metrics, error) {
	if len(time) < 2 || len(time) != len(v) {
		return Metrics{}, fmt.Errorf("cct: waveform needs matching time and value samples")
	}
	if ui <= 0 {
		return Metrics{}, fmt.Errorf("cct: unit interval must be positive")
	}

	var m Metrics
	base := v[0]
	for _, x := range v {
		if ex := math.Abs(x - base); ex > m.PeakV {
			m.PeakV = ex
		}
	}
	m.SettledV = v[len(v)-1]
	m.IntegralVs = trapezoid(time, v, 0, len(v)-1)

	// First sample at or beyond one unit interval past the start.
	split := len(time) - 1
	for i, t := range time {
		if t-time[0] >= ui {
			split = i
			break
		}
	}
	late := trapezoid(time, v, split, len(v)-1)
	if total := math.Abs(m.IntegralVs); total > 0 {
		m.ISIRatio = math.Abs(late) / total
	}
	return m, nil
}
