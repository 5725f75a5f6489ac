package controller

import (
	"time"

	"reflow_oven/internal/telemetry"
)

// Snapshot is a read-only copy of the controller state for monitoring.
type Snapshot struct {
	Phase         Phase
	Profile       string
	ProfileLength float64

	HeaterOn   bool
	ReportedOn bool // relay state as reported by the board

	Temperature    float64
	Target         float64
	Delta          float64
	TargetVelocity float64
	Velocity       telemetry.Velocity
	Trend          telemetry.Velocity

	Fault        int // fault code of the latest sample
	LatchedFault int
	OpenDoor     bool

	Elapsed float64
	Wait    float64
	Samples int

	HeaterOnAt  time.Time
	HeaterOffAt time.Time
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Phase:          c.phase,
		HeaterOn:       c.ovenOn,
		ReportedOn:     c.reportedOn,
		Temperature:    c.temperature,
		TargetVelocity: c.last.TargetVelocity,
		Velocity:       c.Velocity(),
		Trend:          c.Trend(),
		Fault:          c.fault,
		LatchedFault:   c.latchedFault,
		Elapsed:        c.elapsed,
		Wait:           c.lastWait,
		Samples:        c.history.Len(),
		HeaterOnAt:     c.ovenOnAt,
		HeaterOffAt:    c.ovenOffAt,
	}
	if c.profile != nil && c.phase != PhaseIdle && c.phase != PhaseCoolingDown {
		s.Profile = c.profile.Name()
		s.ProfileLength = c.profile.Length()
		s.Target = c.profile.TargetTemperature(c.elapsed)
		s.Delta = c.temperature - s.Target
		s.OpenDoor = s.Delta > c.openDoor
	}
	return s
}
