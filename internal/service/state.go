package service

import (
	"time"

	"reflow_oven/internal/controller"
	"reflow_oven/internal/models"
)

// stateFromSnapshot maps a controller snapshot to the persisted row.
func stateFromSnapshot(s controller.Snapshot, now time.Time) models.OvenState {
	st := models.OvenState{
		ID:                   1,
		Phase:                string(s.Phase),
		Profile:              s.Profile,
		OvenOn:               s.HeaterOn,
		CurrentTempC:         s.Temperature,
		TargetTempC:          s.Target,
		DeltaC:               s.Delta,
		TargetVelocity:       s.TargetVelocity,
		ElapsedSeconds:       s.Elapsed,
		ProfileLengthSeconds: s.ProfileLength,
		FaultCode:            s.Fault,
		OpenDoor:             s.OpenDoor,
		UpdatedAt:            now.UTC(),
	}
	if s.LatchedFault != 0 {
		st.FaultCode = s.LatchedFault
	}
	if v, ok := s.Velocity.Value(); ok {
		st.Velocity = &v
	}
	if v, ok := s.Trend.Value(); ok {
		st.Trend = &v
	}
	return st
}
