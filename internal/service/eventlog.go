package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range: from must not be after to")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidLimit     = errors.New("limit must not be negative")
)

// EventLogService reads the control journal.
type EventLogService struct {
	events repository.EventRepo
}

func NewEventLogService(events repository.EventRepo) *EventLogService {
	return &EventLogService{events: events}
}

// journalQuery turns a caller filter into a repository query: times in UTC,
// the type upper-cased and checked, the limit capped.
func journalQuery(f LogFilter) (models.JournalQuery, error) {
	q := models.JournalQuery{
		Type:  strings.ToUpper(strings.TrimSpace(f.Type)),
		Limit: f.Limit,
	}
	if !f.From.IsZero() {
		q.From = f.From.UTC()
	}
	if !f.To.IsZero() {
		q.To = f.To.UTC()
	}

	switch {
	case !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To):
		return models.JournalQuery{}, ErrInvalidTimeRange
	case q.Type != "" && !models.IsEventType(q.Type):
		return models.JournalQuery{}, fmt.Errorf("%w: %q", ErrUnknownEventType, q.Type)
	case q.Limit < 0:
		return models.JournalQuery{}, ErrInvalidLimit
	case q.Limit > MaxJournalLimit:
		q.Limit = MaxJournalLimit
	}
	return q, nil
}

// List returns matching journal entries, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error) {
	q, err := journalQuery(f)
	if err != nil {
		return nil, err
	}
	return s.events.List(ctx, q)
}
