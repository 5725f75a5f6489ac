package service

import (
	"context"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
)

const phaseUninitialized = "UNINITIALIZED"

// SeriesSource publishes the measurement and profile series of the current run.
type SeriesSource interface {
	Series() models.RunSeries
}

type MonitoringService struct {
	stateRepo repository.StateRepo
	series    SeriesSource
}

func NewMonitoringService(stateRepo repository.StateRepo, series SeriesSource) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo, series: series}
}

// GetState returns the latest persisted oven state.
// If no state is persisted yet, returns a baseline UNINITIALIZED snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.OvenState, error) {
	state, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.OvenState{}, err
	}
	if state.ID == 0 {
		return s.baselineState(), nil
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

// GetSeries returns the series of the current run for plotting.
func (s *MonitoringService) GetSeries(ctx context.Context) (models.RunSeries, error) {
	if err := ctx.Err(); err != nil {
		return models.RunSeries{}, err
	}
	return s.series.Series(), nil
}

// baselineState returns the snapshot reported before the controller saved one.
func (s *MonitoringService) baselineState() models.OvenState {
	return models.OvenState{
		ID:        1, // DB schema enforces single-row state with id=1
		Phase:     phaseUninitialized,
		UpdatedAt: time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
