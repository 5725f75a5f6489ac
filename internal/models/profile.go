package models

// ProfileInfo describes a reflow profile. Time and Temperature carry the
// target curve at 1 s resolution and are only filled for single lookups.
type ProfileInfo struct {
	Name          string    `json:"name"`
	StepSeconds   float64   `json:"step_seconds"`
	Setpoints     []float64 `json:"setpoints"`
	LengthSeconds float64   `json:"length_seconds"`
	MaxTempC      float64   `json:"max_temp_c"`
	Time          []float64 `json:"time,omitempty"`
	Temperature   []float64 `json:"temperature,omitempty"`
}
