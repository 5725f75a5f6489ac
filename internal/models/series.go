package models

// RunSeries is the visualisation payload: measured temperatures of the
// current run next to the profile targets.
type RunSeries struct {
	Profile     string    `json:"profile,omitempty"`
	Time        []float64 `json:"time"`
	Temperature []float64 `json:"temperature"`
	ProfileTime []float64 `json:"profile_time"`
	ProfileTemp []float64 `json:"profile_temperature"`
}
