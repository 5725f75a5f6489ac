package models

import "time"

// OvenState is the latest controller snapshot, persisted as a single row.
type OvenState struct {
	ID                   int       `json:"id"`
	Phase                string    `json:"phase"` // UNINITIALIZED | COOLING_DOWN | IDLE | RUNNING | FAULTED | COMPLETE
	Profile              string    `json:"profile,omitempty"`
	OvenOn               bool      `json:"oven_on"`
	CurrentTempC         float64   `json:"current_temp_c"`
	TargetTempC          float64   `json:"target_temp_c"`
	DeltaC               float64   `json:"delta_c"`
	TargetVelocity       float64   `json:"target_velocity"`
	Velocity             *float64  `json:"velocity"` // nil until enough history exists
	Trend                *float64  `json:"trend"`    // least-squares rate, diagnostic
	ElapsedSeconds       float64   `json:"elapsed_seconds"`
	ProfileLengthSeconds float64   `json:"profile_length_seconds,omitempty"`
	FaultCode            int       `json:"fault_code"`
	OpenDoor             bool      `json:"open_door"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Active reports whether a profile is being followed or the oven is cooling
// down for one.
func (s OvenState) Active() bool {
	return s.Phase == "RUNNING" || s.Phase == "COOLING_DOWN" || s.Phase == "FAULTED"
}
