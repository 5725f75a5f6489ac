package telemetry

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultVelocityWindow is the look-back used by the velocity estimate, seconds.
const DefaultVelocityWindow = 3.0

// minTrendSamples is the smallest sample count Trend fits a line through.
const minTrendSamples = 3

// Velocity is a rate of temperature change in °C/s that may not be known yet.
// The zero value is Undefined.
type Velocity struct {
	value   float64
	defined bool
}

// Undefined means there is not enough history for an estimate.
var Undefined = Velocity{}

func Defined(v float64) Velocity { return Velocity{value: v, defined: true} }

func (v Velocity) Value() (float64, bool) { return v.value, v.defined }

func (v Velocity) IsDefined() bool { return v.defined }

// Below reports whether the velocity is known and strictly less than x.
func (v Velocity) Below(x float64) bool {
	return v.defined && v.value < x
}

func (v Velocity) String() string {
	if !v.defined {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", v.value)
}

func (v Velocity) MarshalJSON() ([]byte, error) {
	if !v.defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

func (v *Velocity) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Defined(f)
	return nil
}

// VelocityEstimator derives the current rate of change from a trailing window.
type VelocityEstimator struct {
	Window float64 // seconds
}

// Estimate compares the newest sample with the most recent sample that is
// more than Window seconds older. With no such sample the result is Undefined.
func (e VelocityEstimator) Estimate(h *History) Velocity {
	n := h.Len()
	if n < 2 {
		return Undefined
	}
	last := h.At(n - 1)

	for i := n - 2; i >= 0; i-- {
		s := h.At(i)
		if last.Elapsed-s.Elapsed > e.Window {
			return Defined((s.Temperature - last.Temperature) / (s.Elapsed - last.Elapsed))
		}
	}
	return Undefined
}

// Trend fits a least-squares line through the samples no older than window
// seconds before the newest one and returns its slope.
func Trend(h *History, window float64) Velocity {
	n := h.Len()
	if n < minTrendSamples {
		return Undefined
	}
	last := h.At(n - 1)

	var xs, ys []float64
	for i := n - 1; i >= 0; i-- {
		s := h.At(i)
		if last.Elapsed-s.Elapsed > window {
			break
		}
		xs = append(xs, s.Elapsed)
		ys = append(ys, s.Temperature)
	}
	if len(xs) < minTrendSamples || xs[0] == xs[len(xs)-1] {
		return Undefined
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return Defined(slope)
}
