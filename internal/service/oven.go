package service

import (
	"context"
	"time"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"

	"github.com/google/uuid"
)

// OvenCommander queues operator commands for the control loop.
type OvenCommander interface {
	Start(ctx context.Context, p *profile.Profile) error
	Stop(ctx context.Context) error
	ClearFault(ctx context.Context) error
}

// OvenService validates operator commands, forwards them to the control loop
// and journals them. A command the loop accepted is not failed by the
// journal: the append error is logged.
type OvenService struct {
	runner    OvenCommander
	catalog   *profile.Catalog
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewOvenService(runner OvenCommander, catalog *profile.Catalog, eventRepo repository.EventRepo,
	log *logger.Logger) *OvenService {
	if log == nil {
		log = logger.Nop()
	}
	return &OvenService{runner: runner, catalog: catalog, eventRepo: eventRepo, log: log.Named("oven")}
}

// Start looks the profile up and queues a run of it.
func (s *OvenService) Start(ctx context.Context, name string) error {
	p, err := s.catalog.Get(name)
	if err != nil {
		return err
	}
	if err := s.runner.Start(ctx, p); err != nil {
		return err
	}
	s.journal(ctx, models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventStart,
		Description: "Run of " + p.Name() + " requested",
		Metadata: map[string]any{
			"profile":  p.Name(),
			"length_s": p.Length(),
			"max_c":    p.MaxTemperature(),
		},
	})
	return nil
}

// Stop aborts the current cooldown or run; the heater is switched off.
func (s *OvenService) Stop(ctx context.Context) error {
	if err := s.runner.Stop(ctx); err != nil {
		return err
	}
	s.journal(ctx, models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventStop,
		Description: "Run stopped, heater off",
	})
	return nil
}

// ClearFault resumes automatic control after a latched fault.
func (s *OvenService) ClearFault(ctx context.Context) error {
	if err := s.runner.ClearFault(ctx); err != nil {
		return err
	}
	s.journal(ctx, models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventFaultCleared,
		Description: "Fault cleared by operator",
	})
	return nil
}

func (s *OvenService) journal(ctx context.Context, ev models.OvenEvent) {
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Errorw("journal_append_failed", "type", ev.Type, "err", err)
	}
}
