package models

import "time"

const (
	EventStart         = "START"
	EventStop          = "STOP"
	EventCooldown      = "COOLDOWN"
	EventProfileLoaded = "PROFILE_LOADED"
	EventFault         = "FAULT"
	EventFaultCleared  = "FAULT_CLEARED"
	EventAnomaly       = "ANOMALY"
	EventComplete      = "COMPLETE"
	EventError         = "ERROR"
)

// EventTypes lists every journal type in the order a run produces them.
var EventTypes = []string{
	EventStart, EventCooldown, EventProfileLoaded, EventFault, EventFaultCleared,
	EventAnomaly, EventComplete, EventStop, EventError,
}

// IsEventType reports whether t names a journal type.
func IsEventType(t string) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OvenEvent is a single control journal entry.
type OvenEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// JournalQuery selects journal entries. Zero bounds are open, an empty Type
// matches every type and Limit 0 returns everything. A positive Limit keeps
// the most recent entries; results are always oldest first.
type JournalQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}
