// Package profile models reflow temperature profiles: named set points sampled
// at a fixed step and interpolated linearly between them.
package profile

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptyProfile    = errors.New("profile has no set points")
	ErrInvalidStep     = errors.New("profile step must be positive")
	ErrInvalidSetpoint = errors.New("profile set points must be non-negative numbers")
)

// plotResolution is the sampling interval of PlotSeries, in seconds.
const plotResolution = 1.0

// Profile is an immutable target curve. setpoints[i] applies at i*step and
// the curve is linear in between. The run starts at time 0 with a target of
// 0 °C; any instant after that is on the curve.
type Profile struct {
	name           string
	step           float64 // seconds
	setpoints      []float64
	maxTemperature float64
}

// New validates and builds a profile. The set points are copied.
func New(name string, step time.Duration, setpoints []float64) (*Profile, error) {
	if len(setpoints) == 0 {
		return nil, fmt.Errorf("profile %q: %w", name, ErrEmptyProfile)
	}
	if step <= 0 {
		return nil, fmt.Errorf("profile %q: %w", name, ErrInvalidStep)
	}

	sp := make([]float64, len(setpoints))
	maxT := 0.0
	for i, t := range setpoints {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return nil, fmt.Errorf("profile %q: set point %d (%v): %w", name, i, t, ErrInvalidSetpoint)
		}
		sp[i] = t
		if t > maxT {
			maxT = t
		}
	}

	return &Profile{
		name:           name,
		step:           step.Seconds(),
		setpoints:      sp,
		maxTemperature: maxT,
	}, nil
}

func (p *Profile) Name() string { return p.name }

func (p *Profile) Step() time.Duration {
	return time.Duration(p.step * float64(time.Second))
}

// Setpoints returns a copy of the set points.
func (p *Profile) Setpoints() []float64 {
	out := make([]float64, len(p.setpoints))
	copy(out, p.setpoints)
	return out
}

// Length is the time of the last set point, in seconds. A run is complete
// once it is past Length.
func (p *Profile) Length() float64 {
	return p.step * float64(len(p.setpoints)-1)
}

func (p *Profile) MaxTemperature() float64 { return p.maxTemperature }

// TargetTemperature returns the interpolated set point at t seconds after the
// start of the run. At or before the start the target is 0; past Length it is
// 0 as well (complete).
func (p *Profile) TargetTemperature(t float64) float64 {
	if t <= 0 {
		return 0
	}

	for i := 1; i < len(p.setpoints); i++ {
		at := float64(i) * p.step
		if t > at {
			continue
		}
		prevAt := at - p.step
		slope := 0.0
		if dt := at - prevAt; dt != 0 {
			slope = (p.setpoints[i] - p.setpoints[i-1]) / dt
		}
		return p.setpoints[i] + slope*(t-at)
	}
	return 0
}

// PlotSeries samples the target curve every second from 0 to Length inclusive.
func (p *Profile) PlotSeries() ([]float64, []float64) {
	n := int(p.Length()/plotResolution) + 1
	times := make([]float64, 0, n)
	temps := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) * plotResolution
		times = append(times, t)
		temps = append(temps, p.TargetTemperature(t))
	}
	return times, temps
}
