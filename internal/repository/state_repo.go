package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reflow_oven/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	ovenStateRowID = 1

	insertOrUpdateStateSQL = `
		INSERT INTO oven_state (id, phase, profile, oven_on, temp_c, target_c, delta_c,
			target_velocity, velocity, trend, elapsed_s, profile_length_s, fault_code, open_door, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase=excluded.phase,
			profile=excluded.profile,
			oven_on=excluded.oven_on,
			temp_c=excluded.temp_c,
			target_c=excluded.target_c,
			delta_c=excluded.delta_c,
			target_velocity=excluded.target_velocity,
			velocity=excluded.velocity,
			trend=excluded.trend,
			elapsed_s=excluded.elapsed_s,
			profile_length_s=excluded.profile_length_s,
			fault_code=excluded.fault_code,
			open_door=excluded.open_door,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, phase, profile, oven_on, temp_c, target_c, delta_c,
			target_velocity, velocity, trend, elapsed_s, profile_length_s, fault_code, open_door, updated_at
		FROM oven_state WHERE id=?
	`
)

// velocityValue maps an undefined rate to SQL NULL.
func velocityValue(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Save updates or inserts the oven_state row (id always 1).
func (r *StateSQLite) Save(ctx context.Context, state models.OvenState) error {
	// ensure UpdatedAt is always persisted as UTC; set if zero
	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		ovenStateRowID,
		state.Phase,
		state.Profile,
		state.OvenOn,
		state.CurrentTempC,
		state.TargetTempC,
		state.DeltaC,
		state.TargetVelocity,
		velocityValue(state.Velocity),
		velocityValue(state.Trend),
		state.ElapsedSeconds,
		state.ProfileLengthSeconds,
		state.FaultCode,
		state.OpenDoor,
		tsUTC,
	)
	if err != nil {
		return fmt.Errorf("save oven state: %w", err)
	}
	return nil
}

// Load fetches the single oven_state row (id=1). A zero state means nothing
// has been saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.OvenState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, ovenStateRowID)

	var (
		s        models.OvenState
		velocity sql.NullFloat64
		trend    sql.NullFloat64
	)
	if err := row.Scan(
		&s.ID,
		&s.Phase,
		&s.Profile,
		&s.OvenOn,
		&s.CurrentTempC,
		&s.TargetTempC,
		&s.DeltaC,
		&s.TargetVelocity,
		&velocity,
		&trend,
		&s.ElapsedSeconds,
		&s.ProfileLengthSeconds,
		&s.FaultCode,
		&s.OpenDoor,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OvenState{}, nil // no state yet
		}
		return models.OvenState{}, fmt.Errorf("load oven state: %w", err)
	}

	s.Velocity = nullableFloat(velocity)
	s.Trend = nullableFloat(trend)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
