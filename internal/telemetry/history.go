// Package telemetry keeps the per-run temperature history and estimates the
// rate of temperature change from it.
package telemetry

import (
	"errors"
	"fmt"
)

var ErrOutOfOrder = errors.New("sample is not newer than the latest sample")

// Sample is one telemetry observation relative to the start of the run.
type Sample struct {
	Elapsed     float64 // seconds since run start
	Temperature float64 // °C
}

// Series is the history as two parallel sequences, ready for plotting.
type Series struct {
	Time        []float64 `json:"time"`
	Temperature []float64 `json:"temperature"`
}

// History is an append-only, time-ordered sequence of samples for one run.
type History struct {
	samples []Sample
}

func NewHistory() *History {
	return &History{}
}

// Append adds s; Elapsed must be strictly greater than the latest sample's.
func (h *History) Append(s Sample) error {
	if last, ok := h.Latest(); ok && s.Elapsed <= last.Elapsed {
		return fmt.Errorf("%w: %.3fs <= %.3fs", ErrOutOfOrder, s.Elapsed, last.Elapsed)
	}
	h.samples = append(h.samples, s)
	return nil
}

func (h *History) Len() int { return len(h.samples) }

func (h *History) Latest() (Sample, bool) {
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// At returns the i-th oldest sample.
func (h *History) At(i int) Sample { return h.samples[i] }

func (h *History) Reset() {
	h.samples = nil
}

// Series copies the history into parallel time/temperature slices.
func (h *History) Series() Series {
	s := Series{
		Time:        make([]float64, len(h.samples)),
		Temperature: make([]float64, len(h.samples)),
	}
	for i, smp := range h.samples {
		s.Time[i] = smp.Elapsed
		s.Temperature[i] = smp.Temperature
	}
	return s
}
