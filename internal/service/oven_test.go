package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
)

type fakeCommander struct {
	err     error
	started *profile.Profile
	stops   int
	clears  int
}

func (f *fakeCommander) Start(_ context.Context, p *profile.Profile) error {
	if f.err != nil {
		return f.err
	}
	f.started = p
	return nil
}

func (f *fakeCommander) Stop(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.stops++
	return nil
}

func (f *fakeCommander) ClearFault(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.clears++
	return nil
}

func newOvenFixture(t *testing.T) (*OvenService, *fakeCommander, *fakeEventRepo) {
	t.Helper()
	catalog, err := profile.DefaultCatalog(0)
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	cmd := &fakeCommander{}
	events := &fakeEventRepo{}
	return NewOvenService(cmd, catalog, events, logger.Nop()), cmd, events
}

func TestOvenService_Start(t *testing.T) {
	t.Parallel()

	t.Run("unknown profile is rejected before the runner", func(t *testing.T) {
		t.Parallel()
		svc, cmd, events := newOvenFixture(t)

		err := svc.Start(context.Background(), "Sn99")
		if !errors.Is(err, profile.ErrUnknownProfile) {
			t.Fatalf("expected ErrUnknownProfile, got %v", err)
		}
		if cmd.started != nil || len(events.appended) != 0 {
			t.Fatalf("nothing must be queued or journalled")
		}
	})

	t.Run("forwards the profile and journals START", func(t *testing.T) {
		t.Parallel()
		svc, cmd, events := newOvenFixture(t)

		if err := svc.Start(context.Background(), "Sn63Pb37"); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if cmd.started == nil || cmd.started.Name() != "Sn63Pb37" {
			t.Fatalf("runner got %v", cmd.started)
		}
		if len(events.appended) != 1 {
			t.Fatalf("want 1 event, got %d", len(events.appended))
		}
		ev := events.appended[0]
		if ev.Type != models.EventStart || ev.EventID == "" || ev.OccurredAt.Location() != time.UTC {
			t.Fatalf("unexpected event: %+v", ev)
		}
		meta, ok := ev.Metadata.(map[string]any)
		if !ok || meta["profile"] != "Sn63Pb37" || meta["max_c"] != 235.0 {
			t.Fatalf("unexpected metadata: %#v", ev.Metadata)
		}
	})

	t.Run("runner refusal is returned and not journalled", func(t *testing.T) {
		t.Parallel()
		svc, cmd, events := newOvenFixture(t)
		cmd.err = ErrBusy

		if err := svc.Start(context.Background(), "Sn63Pb37"); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
		if len(events.appended) != 0 {
			t.Fatalf("refused start must not be journalled")
		}
	})
}

func TestOvenService_StopAndClearFault(t *testing.T) {
	t.Parallel()

	svc, cmd, events := newOvenFixture(t)
	ctx := context.Background()

	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := svc.ClearFault(ctx); err != nil {
		t.Fatalf("ClearFault: %v", err)
	}
	if cmd.stops != 1 || cmd.clears != 1 {
		t.Fatalf("commands not forwarded: %+v", cmd)
	}
	if len(events.appended) != 2 ||
		events.appended[0].Type != models.EventStop ||
		events.appended[1].Type != models.EventFaultCleared {
		t.Fatalf("unexpected journal: %+v", events.appended)
	}

	cmd.err = ErrNotFaulted
	if err := svc.ClearFault(ctx); !errors.Is(err, ErrNotFaulted) {
		t.Fatalf("expected ErrNotFaulted, got %v", err)
	}
	cmd.err = ErrNotRunning
	if err := svc.Stop(ctx); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if len(events.appended) != 2 {
		t.Fatalf("refused commands must not be journalled")
	}
}

func TestOvenService_JournalFailureDoesNotFailCommand(t *testing.T) {
	t.Parallel()

	svc, cmd, events := newOvenFixture(t)
	events.appendErr = errors.New("disk full")
	ctx := context.Background()

	if err := svc.Start(ctx, "Sn42Bi57Ag1"); err != nil {
		t.Fatalf("Start() = %v; the run was queued", err)
	}
	if cmd.started == nil || cmd.started.Name() != "Sn42Bi57Ag1" {
		t.Fatalf("run not forwarded: %+v", cmd.started)
	}
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v; the heater was switched off", err)
	}
	if err := svc.ClearFault(ctx); err != nil {
		t.Fatalf("ClearFault() = %v; the fault was cleared", err)
	}
	if cmd.stops != 1 || cmd.clears != 1 {
		t.Fatalf("stops=%d clears=%d", cmd.stops, cmd.clears)
	}
}

func TestProfileService(t *testing.T) {
	t.Parallel()

	catalog, err := profile.DefaultCatalog(0)
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	if err := catalog.Define("Custom", 10*time.Second, []float64{100, 200}); err != nil {
		t.Fatalf("Define: %v", err)
	}
	svc := NewProfileService(catalog)

	list := svc.List()
	if len(list) != 3 {
		t.Fatalf("want 3 profiles, got %d", len(list))
	}
	for _, p := range list {
		if p.Time != nil || p.Temperature != nil {
			t.Fatalf("list must not carry curves: %+v", p)
		}
	}

	got, err := svc.Get("Custom")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StepSeconds != 10 || got.LengthSeconds != 10 || got.MaxTempC != 200 {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if len(got.Time) != len(got.Temperature) || len(got.Time) == 0 || got.Time[0] != 0 {
		t.Fatalf("curve must start at the origin: %v / %v", got.Time, got.Temperature)
	}

	if _, err := svc.Get("nope"); !errors.Is(err, profile.ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
}
