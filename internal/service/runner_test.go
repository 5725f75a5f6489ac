package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reflow_oven/internal/controller"
	"reflow_oven/internal/device"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/telemetry"
)

// ---- Test doubles ----

// fakeController scripts tick results and records what the runner asked for.
type fakeController struct {
	mu sync.Mutex

	ticks         []controller.TickResult
	tickErr       error
	cooldownErr   error
	blockCooldown bool
	clearErr      error
	phase         controller.Phase

	polls, resets, offs, clears, cooldowns int
	loaded                                 *profile.Profile
}

func (f *fakeController) Tick() (controller.TickResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ticks) == 0 {
		return controller.TickResult{Phase: f.phase}, f.tickErr
	}
	res := f.ticks[0]
	f.ticks = f.ticks[1:]
	f.phase = res.Phase
	return res, f.tickErr
}

func (f *fakeController) Poll() (device.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return device.Status{Temperature: 25}, true
}

func (f *fakeController) Cooldown(ctx context.Context, target float64, progress func(controller.Snapshot)) error {
	f.mu.Lock()
	f.cooldowns++
	block, err := f.blockCooldown, f.cooldownErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if progress != nil {
		progress(controller.Snapshot{Phase: controller.PhaseCoolingDown, Temperature: target + 1})
	}
	return err
}

func (f *fakeController) LoadProfile(p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = p
	f.phase = controller.PhaseRunning
	return nil
}

func (f *fakeController) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.phase = controller.PhaseIdle
	return nil
}

func (f *fakeController) ClearFault() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	f.phase = controller.PhaseRunning
	return nil
}

func (f *fakeController) Off() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offs++
	return nil
}

func (f *fakeController) Snapshot() controller.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := controller.Snapshot{Phase: f.phase, Temperature: 25}
	if f.loaded != nil {
		s.Profile = f.loaded.Name()
	}
	return s
}

func (f *fakeController) Series() telemetry.Series {
	return telemetry.Series{Time: []float64{1}, Temperature: []float64{25}}
}

func (f *fakeController) ProfileSeries() telemetry.Series {
	return telemetry.Series{Time: []float64{0, 1}, Temperature: []float64{0, 2}}
}

// syncStateRepo and syncEventRepo are safe to read while Run is active.
type syncStateRepo struct {
	mu    sync.Mutex
	saves []models.OvenState
}

func (s *syncStateRepo) Save(_ context.Context, st models.OvenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, st)
	return nil
}

func (s *syncStateRepo) Load(context.Context) (models.OvenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return models.OvenState{}, nil
	}
	return s.saves[len(s.saves)-1], nil
}

type syncEventRepo struct {
	mu     sync.Mutex
	events []models.OvenEvent
}

func (e *syncEventRepo) Append(_ context.Context, ev models.OvenEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *syncEventRepo) List(context.Context, models.JournalQuery) ([]models.OvenEvent, error) {
	return nil, nil
}

func (e *syncEventRepo) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

func (e *syncEventRepo) count(typ string) int {
	n := 0
	for _, t := range e.types() {
		if t == typ {
			n++
		}
	}
	return n
}

type runnerFixture struct {
	r      *RunnerService
	ctrl   *fakeController
	states *syncStateRepo
	events *syncEventRepo
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		ctrl:   &fakeController{phase: controller.PhaseUninitialized},
		states: &syncStateRepo{},
		events: &syncEventRepo{},
	}
	f.r = NewRunnerService(f.ctrl, f.states, f.events, RunnerConfig{CooldownTarget: 35}, logger.Nop())
	return f
}

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.New("Test", 15*time.Second, []float64{50, 100})
	if err != nil {
		t.Fatalf("profile.New: %v", err)
	}
	return p
}

// exec runs a command directly on the loop-owned path.
func (f *runnerFixture) exec(kind commandKind, p *profile.Profile) error {
	cmd := command{kind: kind, profile: p, reply: make(chan error, 1)}
	f.r.execute(context.Background(), cmd)
	return <-cmd.reply
}

// ---- Commands ----

func TestRunner_StartCoolsDownThenLoadsProfile(t *testing.T) {
	f := newRunnerFixture(t)
	p := testProfile(t)

	if err := f.exec(cmdStart, p); err != nil {
		t.Fatalf("start: %v", err)
	}
	if f.ctrl.cooldowns != 1 || f.ctrl.loaded != p || !f.r.active {
		t.Fatalf("expected cooldown then load, got %+v", f.ctrl)
	}
	if got := f.events.types(); len(got) != 2 || got[0] != models.EventCooldown || got[1] != models.EventProfileLoaded {
		t.Fatalf("journal = %v", got)
	}
	if len(f.states.saves) < 2 || f.states.saves[0].Phase != string(controller.PhaseCoolingDown) {
		t.Fatalf("cooldown progress must be persisted, saves=%+v", f.states.saves)
	}
	if s := f.r.Series(); s.Profile != "Test" || len(s.ProfileTime) != 2 {
		t.Fatalf("series not published: %+v", s)
	}
	if f.r.cancelCooldown != nil {
		t.Fatalf("cooldown cancel must be released")
	}
}

func TestRunner_StartWhileActiveIsBusy(t *testing.T) {
	f := newRunnerFixture(t)
	p := testProfile(t)
	_ = f.exec(cmdStart, p)

	if err := f.exec(cmdStart, p); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if f.ctrl.cooldowns != 1 {
		t.Fatalf("second start must not cool down again")
	}
}

func TestRunner_CooldownFailureEndsRun(t *testing.T) {
	f := newRunnerFixture(t)
	f.ctrl.cooldownErr = errors.New("heater off: port gone")

	if err := f.exec(cmdStart, testProfile(t)); err != nil {
		t.Fatalf("start is accepted before the cooldown runs: %v", err)
	}
	if f.r.active || f.ctrl.loaded != nil {
		t.Fatalf("failed cooldown must not load the profile")
	}
	if f.events.count(models.EventError) != 1 {
		t.Fatalf("journal = %v", f.events.types())
	}
}

func TestRunner_Stop(t *testing.T) {
	f := newRunnerFixture(t)

	if err := f.exec(cmdStop, nil); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if f.ctrl.offs != 1 {
		t.Fatalf("stop must still switch the heater off")
	}

	_ = f.exec(cmdStart, testProfile(t))
	if err := f.exec(cmdStop, nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if f.r.active || f.ctrl.resets != 1 {
		t.Fatalf("stop must reset the controller")
	}
}

func TestRunner_ClearFault(t *testing.T) {
	f := newRunnerFixture(t)

	if err := f.exec(cmdClearFault, nil); !errors.Is(err, ErrNotFaulted) {
		t.Fatalf("expected ErrNotFaulted, got %v", err)
	}

	f.ctrl.phase = controller.PhaseFaulted
	f.ctrl.clearErr = controller.ErrFaultActive
	if err := f.exec(cmdClearFault, nil); !errors.Is(err, controller.ErrFaultActive) {
		t.Fatalf("expected ErrFaultActive, got %v", err)
	}

	f.ctrl.clearErr = nil
	if err := f.exec(cmdClearFault, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if f.ctrl.clears != 1 {
		t.Fatalf("ClearFault not forwarded")
	}
}

// ---- Ticks ----

func TestRunner_StepWhileIdleOnlyPolls(t *testing.T) {
	f := newRunnerFixture(t)
	f.ctrl.ticks = []controller.TickResult{{Sampled: true}}

	f.r.step(context.Background())

	if f.ctrl.polls != 1 || len(f.ctrl.ticks) != 1 {
		t.Fatalf("idle step must poll and never tick")
	}
	if len(f.states.saves) != 1 {
		t.Fatalf("idle reading must be persisted")
	}
}

func TestRunner_StepJournalsFaultAndAnomalyPerEpisode(t *testing.T) {
	f := newRunnerFixture(t)
	_ = f.exec(cmdStart, testProfile(t))

	f.ctrl.ticks = []controller.TickResult{
		{Sampled: true, NewFault: true, Fault: 2, Phase: controller.PhaseFaulted},
		{Sampled: true, Fault: 2, OpenDoor: true, Phase: controller.PhaseFaulted},
		{Sampled: true, OpenDoor: true, Phase: controller.PhaseRunning},
		{Phase: controller.PhaseRunning}, // miss: episode continues
		{Sampled: true, Phase: controller.PhaseRunning},
		{Sampled: true, OpenDoor: true, Phase: controller.PhaseRunning},
	}
	for i := 0; i < 6; i++ {
		f.r.step(context.Background())
	}

	if n := f.events.count(models.EventFault); n != 1 {
		t.Fatalf("FAULT journalled %d times", n)
	}
	if n := f.events.count(models.EventAnomaly); n != 2 {
		t.Fatalf("ANOMALY journalled %d times, want one per episode", n)
	}
}

func TestRunner_StepCompleteEndsRun(t *testing.T) {
	f := newRunnerFixture(t)
	_ = f.exec(cmdStart, testProfile(t))
	offs := f.ctrl.offs

	f.ctrl.ticks = []controller.TickResult{{Sampled: true, Phase: controller.PhaseComplete}}
	f.r.step(context.Background())

	if f.r.active || f.ctrl.offs != offs+1 {
		t.Fatalf("complete must end the run with the heater off")
	}
	if f.events.count(models.EventComplete) != 1 {
		t.Fatalf("journal = %v", f.events.types())
	}

	f.r.step(context.Background())
	if f.ctrl.polls != 1 {
		t.Fatalf("after completion the runner only polls")
	}
}

func TestRunner_RepeatedTickErrorJournalledOnce(t *testing.T) {
	f := newRunnerFixture(t)
	_ = f.exec(cmdStart, testProfile(t))
	f.ctrl.tickErr = errors.New("heater on: write /dev/ttyACM0: i/o error")

	for i := 0; i < 3; i++ {
		f.r.step(context.Background())
	}
	if n := f.events.count(models.EventError); n != 1 {
		t.Fatalf("ERROR journalled %d times", n)
	}
}

// ---- Loop ----

func TestRunner_RunStopCancelsCooldown(t *testing.T) {
	f := newRunnerFixture(t)
	f.ctrl.blockCooldown = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.r.Run(ctx, time.Hour)
		close(done)
	}()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	if err := f.r.Start(reqCtx, testProfile(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.r.Stop(reqCtx); err != nil {
		t.Fatalf("Stop during cooldown: %v", err)
	}

	cancel()
	<-done

	if f.r.active || f.ctrl.loaded != nil || f.ctrl.resets != 1 {
		t.Fatalf("cooldown must be aborted without loading: %+v", f.ctrl)
	}
	if f.ctrl.offs == 0 {
		t.Fatalf("shutdown must switch the heater off")
	}
	if err := f.r.Stop(reqCtx); !errors.Is(err, ErrRunnerStopped) {
		t.Fatalf("expected ErrRunnerStopped after shutdown, got %v", err)
	}
}

func TestRunner_SubmitHonoursContext(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.r.ClearFault(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// ---- End to end with the simulated oven ----

type simClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *simClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestRunner_DrivesSimulatedOven(t *testing.T) {
	clk := &simClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	sim := device.NewSimulator(device.SimulatorConfig{StartC: 30, Now: clk.Now, Sleep: clk.Sleep})

	ctrl, err := controller.New(device.NewPort(sim), controller.Config{
		Clock: clk.Now,
		Out:   &discard{},
	}, logger.Nop())
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	defer ctrl.Close()

	catalog, err := profile.DefaultCatalog(0)
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	p, _ := catalog.Get("Sn42Bi57Ag1")

	states, events := &syncStateRepo{}, &syncEventRepo{}
	r := NewRunnerService(ctrl, states, events, RunnerConfig{CooldownTarget: 35}, logger.Nop())

	cmd := command{kind: cmdStart, profile: p, reply: make(chan error, 1)}
	r.execute(context.Background(), cmd)
	if err := <-cmd.reply; err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 40; i++ {
		r.step(context.Background())
	}

	snap := ctrl.Snapshot()
	if snap.Phase != controller.PhaseRunning || snap.Samples != 40 {
		t.Fatalf("unexpected controller state: %+v", snap)
	}
	if snap.HeaterOnAt.IsZero() {
		t.Fatalf("heater never switched on below the profile")
	}
	if !snap.Velocity.IsDefined() {
		t.Fatalf("velocity must be defined after 10 s of samples")
	}

	last, _ := states.Load(context.Background())
	if last.Phase != string(controller.PhaseRunning) || last.Profile != "Sn42Bi57Ag1" || last.Velocity == nil {
		t.Fatalf("unexpected persisted state: %+v", last)
	}
	if s := r.Series(); len(s.Time) != 40 || len(s.ProfileTime) == 0 {
		t.Fatalf("unexpected series lengths: %d / %d", len(s.Time), len(s.ProfileTime))
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
