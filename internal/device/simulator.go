package device

import (
	"sync"
	"time"
)

// ----------- Simulation constants -----------
const (
	AmbientC        = 25.0  // ambient temperature °C
	MaxSafeC        = 300.0 // above this the board reports FaultOverheat
	HeatRateCPerSec = 3.0   // °C per second with the element at full power
	LossPerSec      = 0.01  // Newtonian loss towards ambient, 1/s
	ElementLagSec   = 20.0  // element time constant; the oven keeps heating after "off"

	FaultOverheat = 1

	DefaultCadence = 250 * time.Millisecond
	simStep        = 0.1 // integration step, seconds
)

// SimulatorConfig tunes the simulated oven. Zero values pick defaults.
type SimulatorConfig struct {
	StartC  float64
	Cadence time.Duration // interval between status lines
	Now     func() time.Time
	Sleep   func(time.Duration)
}

// Simulator is an in-process oven that speaks the board protocol, for bench
// runs without hardware.
type Simulator struct {
	mu sync.Mutex

	now     func() time.Time
	sleep   func(time.Duration)
	cadence time.Duration

	tempC    float64
	power    float64 // element output, 0..1
	heaterOn bool
	fault    int

	last     time.Time // model time
	lastRead time.Time
	closed   bool
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Cadence == 0 {
		cfg.Cadence = DefaultCadence
	}
	if cfg.StartC == 0 {
		cfg.StartC = AmbientC
	}
	return &Simulator{
		now:     cfg.Now,
		sleep:   cfg.Sleep,
		cadence: cfg.Cadence,
		tempC:   cfg.StartC,
		last:    cfg.Now(),
	}
}

// Write applies heater commands; unknown bytes are ignored like the board does.
func (s *Simulator) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	s.advance(s.now())
	for _, c := range b {
		switch Command(c) {
		case CommandOn:
			s.heaterOn = true
		case CommandOff:
			s.heaterOn = false
		}
	}
	return len(b), nil
}

// ReadLine paces reads at the board cadence and reports the current state.
func (s *Simulator) ReadLine() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	if !s.lastRead.IsZero() {
		if wait := s.cadence - s.now().Sub(s.lastRead); wait > 0 {
			s.sleep(wait)
		}
	}
	now := s.now()
	s.advance(now)
	s.lastRead = now

	return FormatStatus(Status{
		Temperature: s.tempC,
		Fault:       s.fault,
		OvenOn:      s.heaterOn,
		Wait:        s.cadence.Seconds(),
	}), nil
}

func (s *Simulator) ResetInput() error  { return nil }
func (s *Simulator) ResetOutput() error { return nil }
func (s *Simulator) Drain() error       { return nil }

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Temperature returns the model temperature without advancing time.
func (s *Simulator) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempC
}

func (s *Simulator) HeaterOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heaterOn
}

// advance integrates the thermal model up to now.
func (s *Simulator) advance(now time.Time) {
	elapsed := now.Sub(s.last).Seconds()
	if elapsed > 0 {
		s.last = now
	}

	for elapsed > 0 {
		dt := simStep
		if elapsed < dt {
			dt = elapsed
		}
		elapsed -= dt
		s.stepElement(dt)
		s.tempC += (s.power*HeatRateCPerSec - LossPerSec*(s.tempC-AmbientC)) * dt
	}
	s.detectOverheat()
}

// stepElement moves element output towards the commanded state with a
// first-order lag.
func (s *Simulator) stepElement(dt float64) {
	target := 0.0
	if s.heaterOn {
		target = 1.0
	}
	k := dt / ElementLagSec
	if k > 1 {
		k = 1
	}
	s.power += (target - s.power) * k
}

// detectOverheat latches the fault above MaxSafeC; it clears once the heater
// is off and the oven is back under the limit.
func (s *Simulator) detectOverheat() {
	if s.tempC > MaxSafeC {
		s.fault = FaultOverheat
		return
	}
	if s.fault != 0 && !s.heaterOn {
		s.fault = 0
	}
}
