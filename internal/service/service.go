package service

import (
	"context"
	"time"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Oven exposes the operator commands: start a profile, stop, clear a fault.
type Oven interface {
	Start(ctx context.Context, profile string) error
	Stop(ctx context.Context) error
	ClearFault(ctx context.Context) error
}

// Monitoring exposes read-only state and the series of the current run.
type Monitoring interface {
	GetState(ctx context.Context) (models.OvenState, error)
	GetSeries(ctx context.Context) (models.RunSeries, error)
}

// EventLog exposes the control journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error)
}

// Profiles exposes the profile catalogue.
type Profiles interface {
	List() []models.ProfileInfo
	Get(name string) (models.ProfileInfo, error)
}

// Runner runs the control loop. Stop via context cancellation in main() for
// graceful shutdown.
type Runner interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Oven
	Monitoring
	EventLog
	Profiles
	Runner
	Authorization
}

type Config struct {
	CooldownTarget float64
	Auth           AuthConfig
}

// NewService wires the repository layer, the profile catalogue and the
// controller into concrete services.
func NewService(repos *repository.Repository, catalog *profile.Catalog, ctrl OvenController,
	cfg Config, log *logger.Logger) (*Service, error) {
	auth, err := NewAuthService(repos.Auth, cfg.Auth)
	if err != nil {
		return nil, err
	}
	runner := NewRunnerService(ctrl, repos.StateRepo, repos.EventRepo,
		RunnerConfig{CooldownTarget: cfg.CooldownTarget}, log)

	return &Service{
		Oven:          NewOvenService(runner, catalog, repos.EventRepo, log),
		Monitoring:    NewMonitoringService(repos.StateRepo, runner),
		EventLog:      NewEventLogService(repos.EventRepo),
		Profiles:      NewProfileService(catalog),
		Runner:        runner,
		Authorization: auth,
	}, nil
}
