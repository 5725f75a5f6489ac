// Package controller drives the oven through a profile with a feedforward
// bang-bang rule: the heater is on while the measured heating rate is below the
// rate needed to reach the target lag-time seconds ahead.
package controller

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"reflow_oven/internal/device"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/telemetry"
)

// Phase is the controller state machine position.
type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseCoolingDown   Phase = "COOLING_DOWN"
	PhaseIdle          Phase = "IDLE"
	PhaseRunning       Phase = "RUNNING"
	PhaseFaulted       Phase = "FAULTED"
	PhaseComplete      Phase = "COMPLETE"
)

const (
	DefaultLagTime        = 25 * time.Second
	DefaultVelocityWindow = 3 * time.Second
	DefaultTrendWindow    = 10 * time.Second
	DefaultOpenDoorDelta  = 50.0 // °C above target
	DefaultCooldownTarget = 35.0 // °C
)

var (
	ErrNoProfile     = errors.New("no profile loaded")
	ErrFaultActive   = errors.New("device still reports a fault")
	ErrInvalidConfig = errors.New("invalid controller config")
)

// Device is the command/status channel the controller drives.
type Device interface {
	Send(cmd device.Command) error
	Receive() (device.Status, error)
	Close() error
}

type Config struct {
	LagTime        time.Duration
	VelocityWindow time.Duration
	TrendWindow    time.Duration
	OpenDoorDelta  float64

	Clock func() time.Time
	Out   io.Writer // operator status lines; stdout when nil
}

// Controller owns the oven for one process. It is not safe for concurrent use:
// a single scheduler goroutine must drive it.
type Controller struct {
	dev       Device
	log       *logger.Logger
	now       func() time.Time
	out       io.Writer
	lag       float64 // seconds
	trend     float64 // seconds
	openDoor  float64
	estimator telemetry.VelocityEstimator

	profile *profile.Profile
	history *telemetry.History
	phase   Phase

	ovenOn    bool
	ovenOnAt  time.Time
	ovenOffAt time.Time
	start     time.Time
	elapsed   float64

	temperature  float64
	reportedOn   bool
	fault        int
	latchedFault int
	lastWait     float64

	last   TickResult
	closed bool
}

// New takes ownership of dev, switches the heater off and takes a first
// status reading. It fails if the heater cannot be commanded.
func New(dev Device, cfg Config, log *logger.Logger) (*Controller, error) {
	if cfg.LagTime == 0 {
		cfg.LagTime = DefaultLagTime
	}
	if cfg.VelocityWindow == 0 {
		cfg.VelocityWindow = DefaultVelocityWindow
	}
	if cfg.TrendWindow == 0 {
		cfg.TrendWindow = DefaultTrendWindow
	}
	if cfg.OpenDoorDelta == 0 {
		cfg.OpenDoorDelta = DefaultOpenDoorDelta
	}
	if cfg.LagTime < 0 || cfg.VelocityWindow < 0 || cfg.TrendWindow < 0 {
		return nil, fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Controller{
		dev:       dev,
		log:       log,
		now:       cfg.Clock,
		out:       cfg.Out,
		lag:       cfg.LagTime.Seconds(),
		trend:     cfg.TrendWindow.Seconds(),
		openDoor:  cfg.OpenDoorDelta,
		estimator: telemetry.VelocityEstimator{Window: cfg.VelocityWindow.Seconds()},
		history:   telemetry.NewHistory(),
		phase:     PhaseUninitialized,
	}
	c.start = c.now()

	if err := c.Off(); err != nil {
		return nil, fmt.Errorf("initialize controller: %w", err)
	}
	c.UpdateStatus()
	return c, nil
}

// On commands the heater on. The transition time is only recorded when the
// heater was off.
func (c *Controller) On() error {
	if err := c.dev.Send(device.CommandOn); err != nil {
		return fmt.Errorf("heater on: %w", err)
	}
	if !c.ovenOn {
		c.ovenOnAt = c.now()
	}
	c.ovenOn = true
	return nil
}

// Off commands the heater off; see On.
func (c *Controller) Off() error {
	if err := c.dev.Send(device.CommandOff); err != nil {
		return fmt.Errorf("heater off: %w", err)
	}
	if c.ovenOn {
		c.ovenOffAt = c.now()
	}
	c.ovenOn = false
	return nil
}

// UpdateStatus polls one status record. Elapsed time is refreshed on every
// call; history and readings change only when a record was decoded.
func (c *Controller) UpdateStatus() (device.Status, bool) {
	c.elapsed = c.now().Sub(c.start).Seconds()

	st, err := c.dev.Receive()
	if err != nil {
		c.log.Debugw("telemetry_miss", "err", err, "elapsed", c.elapsed)
		return device.Status{}, false
	}
	if err := c.history.Append(telemetry.Sample{Elapsed: c.elapsed, Temperature: st.Temperature}); err != nil {
		c.log.Debugw("telemetry_dropped", "err", err)
		return device.Status{}, false
	}

	c.apply(st)
	return st, true
}

// Poll refreshes the readings without touching the history or the run clock.
// It keeps monitoring live while no run is active.
func (c *Controller) Poll() (device.Status, bool) {
	st, err := c.dev.Receive()
	if err != nil {
		c.log.Debugw("telemetry_miss", "err", err)
		return device.Status{}, false
	}
	c.apply(st)
	return st, true
}

func (c *Controller) apply(st device.Status) {
	c.temperature = st.Temperature
	c.fault = st.Fault
	c.reportedOn = st.OvenOn
	c.lastWait = st.Wait
}

// Velocity is the current windowed estimate of the heating rate.
func (c *Controller) Velocity() telemetry.Velocity {
	return c.estimator.Estimate(c.history)
}

// Trend is the least-squares heating rate over the trend window. Diagnostic only.
func (c *Controller) Trend() telemetry.Velocity {
	return telemetry.Trend(c.history, c.trend)
}

// Reset starts a fresh run clock, drops the history, releases a latched fault
// and switches the heater off.
func (c *Controller) Reset() error {
	c.elapsed = 0
	c.start = c.now()
	c.history.Reset()
	c.latchedFault = 0
	c.last = TickResult{}
	c.phase = PhaseIdle
	return c.Off()
}

// LoadProfile resets the run and installs p.
func (c *Controller) LoadProfile(p *profile.Profile) error {
	if err := c.Reset(); err != nil {
		return err
	}
	c.profile = p
	c.phase = PhaseRunning
	c.log.Infow("profile_loaded", "profile", p.Name(), "length_s", p.Length(), "max_c", p.MaxTemperature())
	return nil
}

// ClearFault resumes automatic control after a fault, once the latest sample
// no longer reports one.
func (c *Controller) ClearFault() error {
	if c.phase != PhaseFaulted {
		return nil
	}
	if c.fault != 0 {
		return fmt.Errorf("%w: code %d", ErrFaultActive, c.fault)
	}
	c.log.Infow("fault_cleared", "fault", c.latchedFault)
	c.latchedFault = 0
	c.phase = c.runPhase()
	return nil
}

func (c *Controller) Phase() Phase { return c.phase }

func (c *Controller) Profile() *profile.Profile { return c.profile }

func (c *Controller) HeaterOn() bool { return c.ovenOn }

// Series returns the run history for plotting.
func (c *Controller) Series() telemetry.Series { return c.history.Series() }

// ProfileSeries returns the loaded profile sampled once per second.
func (c *Controller) ProfileSeries() telemetry.Series {
	if c.profile == nil {
		return telemetry.Series{Time: []float64{}, Temperature: []float64{}}
	}
	x, y := c.profile.PlotSeries()
	return telemetry.Series{Time: x, Temperature: y}
}

// Close switches the heater off and releases the device. It must run on every
// exit path; calling it again is a no-op.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	offErr := c.Off()
	if offErr != nil {
		c.log.Errorw("heater_off_on_close_failed", "err", offErr)
	}
	return errors.Join(offErr, c.dev.Close())
}

func (c *Controller) runPhase() Phase {
	if c.profile != nil && c.elapsed > c.profile.Length() {
		return PhaseComplete
	}
	return PhaseRunning
}
