package controller

import (
	"fmt"
	"strings"

	"reflow_oven/internal/profile"
	"reflow_oven/internal/telemetry"
)

// TickResult describes what one control tick observed and decided.
type TickResult struct {
	Sampled  bool // a status record was decoded this tick
	Decided  bool // the velocity rule ran (false when faulted or unsampled)
	HeaterOn bool

	Elapsed        float64
	Temperature    float64
	Target         float64
	NextTarget     float64
	Delta          float64
	TargetVelocity float64
	Velocity       telemetry.Velocity

	Fault    int  // latched fault code, 0 when healthy
	NewFault bool // the fault tripped on this tick
	OpenDoor bool // advisory: far above target

	Phase Phase
}

// TargetVelocity is the heating rate needed now to reach the profile target
// lag seconds ahead.
func TargetVelocity(p *profile.Profile, elapsed, temperature, lag float64) float64 {
	next := p.TargetTemperature(elapsed + lag)
	return (next - temperature) / lag
}

// Decide is the bang-bang rule: heat only while the measured rate is known and
// below the required rate.
func Decide(velocity telemetry.Velocity, targetVelocity float64) bool {
	return velocity.Below(targetVelocity)
}

// Tick runs one control step: poll, check faults, decide, command, report.
// Without a fresh sample nothing is decided and the heater is left as it is.
func (c *Controller) Tick() (TickResult, error) {
	if c.profile == nil {
		return TickResult{Phase: c.phase}, ErrNoProfile
	}
	if _, ok := c.UpdateStatus(); !ok {
		return TickResult{Phase: c.phase, HeaterOn: c.ovenOn}, nil
	}

	res := TickResult{
		Sampled:     true,
		Elapsed:     c.elapsed,
		Temperature: c.temperature,
		Target:      c.profile.TargetTemperature(c.elapsed),
		Velocity:    c.Velocity(),
	}
	res.Delta = res.Temperature - res.Target
	res.OpenDoor = res.Delta > c.openDoor

	if c.fault != 0 || c.phase == PhaseFaulted {
		return c.faultTick(res)
	}

	res.NextTarget = c.profile.TargetTemperature(c.elapsed + c.lag)
	res.TargetVelocity = TargetVelocity(c.profile, c.elapsed, c.temperature, c.lag)
	res.Decided = true

	var err error
	if Decide(res.Velocity, res.TargetVelocity) {
		err = c.On()
	} else {
		err = c.Off()
	}

	phase := c.runPhase()
	if phase == PhaseComplete && c.phase != PhaseComplete {
		c.log.Infow("profile_complete", "profile", c.profile.Name(), "elapsed", c.elapsed)
	}
	c.phase = phase

	res.HeaterOn = c.ovenOn
	res.Phase = c.phase
	c.last = res
	c.printStatus(res)
	return res, err
}

// faultTick forces the heater off and latches the fault until ClearFault or Reset.
func (c *Controller) faultTick(res TickResult) (TickResult, error) {
	if c.fault != 0 && c.latchedFault == 0 {
		c.latchedFault = c.fault
	}
	res.NewFault = c.phase != PhaseFaulted
	if res.NewFault {
		c.log.Errorw("fault_detected", "fault", c.fault, "temperature", c.temperature, "elapsed", c.elapsed)
	}
	c.phase = PhaseFaulted

	err := c.Off()
	res.Fault = c.latchedFault
	res.HeaterOn = c.ovenOn
	res.Phase = c.phase
	c.last = res
	c.printStatus(res)
	return res, err
}

// StatusLine renders the one-line operator summary of a tick.
func StatusLine(r TickResult) string {
	var b strings.Builder
	if r.OpenDoor {
		b.WriteString("OPEN DOOR!! / ")
	}
	if r.Fault != 0 {
		fmt.Fprintf(&b, "FAULT %d / ", r.Fault)
	}
	fmt.Fprintf(&b, "Oven On: %t / ", r.HeaterOn)
	fmt.Fprintf(&b, "Temp: %.1fC / ", r.Temperature)
	fmt.Fprintf(&b, "Target: %.1fC / ", r.Target)
	fmt.Fprintf(&b, "Delta: %.1fC / ", r.Delta)
	if r.Decided {
		fmt.Fprintf(&b, "Target Velocity: %.1f / ", r.TargetVelocity)
	}
	fmt.Fprintf(&b, "Velocity: %sC/s", r.Velocity)
	return b.String()
}

func (c *Controller) printStatus(r TickResult) {
	fmt.Fprintln(c.out, StatusLine(r))
}
