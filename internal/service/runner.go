package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reflow_oven/internal/controller"
	"reflow_oven/internal/device"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/telemetry"

	"github.com/google/uuid"
)

var (
	ErrBusy          = errors.New("a run is already in progress")
	ErrNotRunning    = errors.New("no run in progress")
	ErrNotFaulted    = errors.New("oven is not faulted")
	ErrRunnerStopped = errors.New("runner is not running")
)

// persistTimeout bounds the final snapshot write after the run context ends.
const persistTimeout = 2 * time.Second

// OvenController is the part of the controller the runner drives.
type OvenController interface {
	Tick() (controller.TickResult, error)
	Poll() (device.Status, bool)
	Cooldown(ctx context.Context, target float64, progress func(controller.Snapshot)) error
	LoadProfile(p *profile.Profile) error
	Reset() error
	ClearFault() error
	Off() error
	Snapshot() controller.Snapshot
	Series() telemetry.Series
	ProfileSeries() telemetry.Series
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdClearFault
)

type command struct {
	kind    commandKind
	profile *profile.Profile
	aborted bool // a cooldown was cancelled on behalf of this stop
	reply   chan error
}

// RunnerService is the only goroutine that touches the controller. It ticks
// the control loop on a fixed period and applies queued operator commands
// between ticks. Readers get the persisted snapshot and a copy of the series.
type RunnerService struct {
	ctrl           OvenController
	stateRepo      repository.StateRepo
	eventRepo      repository.EventRepo
	log            *logger.Logger
	cooldownTarget float64
	now            func() time.Time

	commands chan command
	done     chan struct{}

	mu             sync.RWMutex
	series         models.RunSeries
	cancelCooldown context.CancelFunc

	// loop-owned
	active   bool
	openDoor bool
	lastErr  string
}

type RunnerConfig struct {
	CooldownTarget float64
}

func NewRunnerService(ctrl OvenController, stateRepo repository.StateRepo, eventRepo repository.EventRepo,
	cfg RunnerConfig, log *logger.Logger) *RunnerService {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.CooldownTarget == 0 {
		cfg.CooldownTarget = controller.DefaultCooldownTarget
	}
	return &RunnerService{
		ctrl:           ctrl,
		stateRepo:      stateRepo,
		eventRepo:      eventRepo,
		log:            log.Named("runner"),
		cooldownTarget: cfg.CooldownTarget,
		now:            time.Now,
		commands:       make(chan command),
		done:           make(chan struct{}),
		series:         emptySeries(),
	}
}

// Run ticks at the given interval until ctx is canceled. The heater is
// switched off on the way out.
func (r *RunnerService) Run(ctx context.Context, tick time.Duration) {
	defer close(r.done)
	defer r.shutdown(ctx)

	t := time.NewTicker(tick)
	defer t.Stop()

	r.persist(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.commands:
			r.execute(ctx, cmd)
		case <-t.C:
			r.step(ctx)
		}
	}
}

// Start queues a run of p: cool down, then follow the profile. It returns
// once the runner accepted the command, not when the run ends.
func (r *RunnerService) Start(ctx context.Context, p *profile.Profile) error {
	return r.submit(ctx, command{kind: cmdStart, profile: p})
}

// Stop aborts a cooldown or run and switches the heater off.
func (r *RunnerService) Stop(ctx context.Context) error {
	r.mu.Lock()
	aborted := r.cancelCooldown != nil
	if aborted {
		r.cancelCooldown()
	}
	r.mu.Unlock()
	return r.submit(ctx, command{kind: cmdStop, aborted: aborted})
}

// ClearFault releases a latched fault.
func (r *RunnerService) ClearFault(ctx context.Context) error {
	return r.submit(ctx, command{kind: cmdClearFault})
}

// Series returns the last published measurement and profile series.
func (r *RunnerService) Series() models.RunSeries {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copySeries(r.series)
}

func (r *RunnerService) submit(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case r.commands <- cmd:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RunnerService) execute(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdStart:
		if r.active {
			cmd.reply <- ErrBusy
			return
		}
		// register the cancel before acknowledging so an early Stop finds it
		r.active = true
		coolCtx, cancel := context.WithCancel(ctx)
		r.mu.Lock()
		r.cancelCooldown = cancel
		r.mu.Unlock()
		cmd.reply <- nil
		r.startRun(ctx, coolCtx, cancel, cmd.profile)
	case cmdStop:
		cmd.reply <- r.stopRun(ctx, cmd.aborted)
	case cmdClearFault:
		cmd.reply <- r.clearFault(ctx)
	}
}

// startRun blocks the loop for the cooldown; Stop cancels coolCtx through
// cancelCooldown.
func (r *RunnerService) startRun(ctx, coolCtx context.Context, cancel context.CancelFunc, p *profile.Profile) {
	r.openDoor = false
	r.lastErr = ""
	defer func() {
		r.mu.Lock()
		r.cancelCooldown = nil
		r.mu.Unlock()
		cancel()
	}()

	r.journal(ctx, models.EventCooldown, fmt.Sprintf("Cooling down to %.0fC before %s", r.cooldownTarget, p.Name()),
		map[string]any{"target_c": r.cooldownTarget, "profile": p.Name()})

	err := r.ctrl.Cooldown(coolCtx, r.cooldownTarget, func(s controller.Snapshot) {
		r.persistSnapshot(ctx, s)
	})
	if err != nil {
		r.active = false
		if errors.Is(err, context.Canceled) {
			r.log.Infow("run_aborted_during_cooldown", "profile", p.Name())
		} else {
			r.log.Errorw("cooldown_failed", "err", err)
			r.journal(ctx, models.EventError, "Cooldown failed: "+err.Error(), nil)
		}
		r.persist(ctx)
		return
	}

	if err := r.ctrl.LoadProfile(p); err != nil {
		r.active = false
		r.log.Errorw("profile_load_failed", "profile", p.Name(), "err", err)
		r.journal(ctx, models.EventError, "Profile load failed: "+err.Error(), nil)
		r.persist(ctx)
		return
	}
	r.journal(ctx, models.EventProfileLoaded, "Profile "+p.Name()+" loaded",
		map[string]any{"profile": p.Name(), "length_s": p.Length(), "max_c": p.MaxTemperature()})
	r.publish()
	r.persist(ctx)
}

func (r *RunnerService) stopRun(ctx context.Context, aborted bool) error {
	if !r.active && !aborted {
		// still make sure the heater is off
		if err := r.ctrl.Off(); err != nil {
			return err
		}
		return ErrNotRunning
	}
	r.active = false
	err := r.ctrl.Reset()
	r.persist(ctx)
	return err
}

func (r *RunnerService) clearFault(ctx context.Context) error {
	if r.ctrl.Snapshot().Phase != controller.PhaseFaulted {
		return ErrNotFaulted
	}
	if err := r.ctrl.ClearFault(); err != nil {
		return err
	}
	r.persist(ctx)
	return nil
}

// step runs one control tick, or just refreshes the readings when idle.
func (r *RunnerService) step(ctx context.Context) {
	if !r.active {
		if _, ok := r.ctrl.Poll(); ok {
			r.persist(ctx)
		}
		return
	}

	res, err := r.ctrl.Tick()
	if err != nil {
		r.reportError(ctx, err)
	} else {
		r.lastErr = ""
	}
	if !res.Sampled {
		return
	}

	if res.NewFault {
		r.journal(ctx, models.EventFault, fmt.Sprintf("Device fault %d, heater off", res.Fault),
			map[string]any{"fault": res.Fault, "temp_c": res.Temperature, "elapsed_s": res.Elapsed})
	}
	if res.OpenDoor && !r.openDoor {
		r.log.Warnw("open_door", "temp_c", res.Temperature, "target_c", res.Target, "delta_c", res.Delta)
		r.journal(ctx, models.EventAnomaly, "Temperature far above target, open the door",
			map[string]any{"temp_c": res.Temperature, "target_c": res.Target, "delta_c": res.Delta})
	}
	r.openDoor = res.OpenDoor

	if res.Phase == controller.PhaseComplete {
		r.active = false
		if err := r.ctrl.Off(); err != nil {
			r.reportError(ctx, err)
		}
		r.journal(ctx, models.EventComplete, "Profile complete",
			map[string]any{"elapsed_s": res.Elapsed, "temp_c": res.Temperature})
	}

	r.publish()
	r.persist(ctx)
}

// reportError logs every failure but journals a repeated one only once.
func (r *RunnerService) reportError(ctx context.Context, err error) {
	r.log.Errorw("tick_failed", "err", err)
	if msg := err.Error(); msg != r.lastErr {
		r.lastErr = msg
		r.journal(ctx, models.EventError, "Control tick failed: "+msg, nil)
	}
}

func (r *RunnerService) shutdown(ctx context.Context) {
	if err := r.ctrl.Off(); err != nil {
		r.log.Errorw("heater_off_on_shutdown_failed", "err", err)
	}
	r.active = false

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	r.persist(pctx)
}

func (r *RunnerService) persist(ctx context.Context) {
	r.persistSnapshot(ctx, r.ctrl.Snapshot())
}

func (r *RunnerService) persistSnapshot(ctx context.Context, s controller.Snapshot) {
	if err := r.stateRepo.Save(ctx, stateFromSnapshot(s, r.now())); err != nil {
		r.log.Warnw("state_save_failed", "err", err)
	}
}

func (r *RunnerService) publish() {
	hist := r.ctrl.Series()
	prof := r.ctrl.ProfileSeries()
	s := models.RunSeries{
		Time:        hist.Time,
		Temperature: hist.Temperature,
		ProfileTime: prof.Time,
		ProfileTemp: prof.Temperature,
	}
	s.Profile = r.ctrl.Snapshot().Profile

	r.mu.Lock()
	r.series = s
	r.mu.Unlock()
}

func (r *RunnerService) journal(ctx context.Context, typ, desc string, meta map[string]any) {
	ev := models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  r.now().UTC(),
		Type:        typ,
		Description: desc,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := r.eventRepo.Append(ctx, ev); err != nil {
		r.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}

func emptySeries() models.RunSeries {
	return models.RunSeries{
		Time:        []float64{},
		Temperature: []float64{},
		ProfileTime: []float64{},
		ProfileTemp: []float64{},
	}
}

func copySeries(s models.RunSeries) models.RunSeries {
	return models.RunSeries{
		Profile:     s.Profile,
		Time:        append([]float64{}, s.Time...),
		Temperature: append([]float64{}, s.Temperature...),
		ProfileTime: append([]float64{}, s.ProfileTime...),
		ProfileTemp: append([]float64{}, s.ProfileTemp...),
	}
}
