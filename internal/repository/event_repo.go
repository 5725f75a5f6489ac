package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reflow_oven/internal/models"

	"github.com/google/uuid"
)

// journalTimeLayout sorts lexicographically, so range filters work on the
// stored text.
const journalTimeLayout = "2006-01-02 15:04:05.000"

const (
	appendEventSQL = `INSERT INTO oven_events (id, occurred_at, type, message, meta) VALUES (?, ?, ?, ?, ?)`
	eventColumns   = `id, occurred_at, type, message, meta`
)

// EventSQLite keeps the control journal in the oven_events table.
type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append stores e, assigning an id and a UTC timestamp when missing.
// Metadata that cannot be encoded is dropped rather than failing the entry.
func (r *EventSQLite) Append(ctx context.Context, e models.OvenEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta sql.NullString
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = sql.NullString{String: string(b), Valid: true}
		}
	}

	if _, err := r.db.ExecContext(ctx, appendEventSQL,
		e.EventID,
		e.OccurredAt.UTC().Format(journalTimeLayout),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		meta,
	); err != nil {
		return fmt.Errorf("append %s event: %w", e.Type, err)
	}
	return nil
}

// journalSQL builds the SELECT for q. A limited query takes the newest rows
// in a subquery and re-sorts them oldest first.
func journalSQL(q models.JournalQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, q.From.UTC().Format(journalTimeLayout))
	}
	if !q.To.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, q.To.UTC().Format(journalTimeLayout))
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		where = append(where, "type = ?")
		args = append(args, typ)
	}

	var b strings.Builder
	b.WriteString("SELECT " + eventColumns + " FROM oven_events")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if q.Limit <= 0 {
		b.WriteString(" ORDER BY occurred_at ASC")
		return b.String(), args
	}

	b.WriteString(" ORDER BY occurred_at DESC LIMIT ?")
	args = append(args, q.Limit)
	return "SELECT " + eventColumns + " FROM (" + b.String() + ") ORDER BY occurred_at ASC", args
}

// List returns the entries matching q, oldest first.
func (r *EventSQLite) List(ctx context.Context, q models.JournalQuery) ([]models.OvenEvent, error) {
	query, args := journalSQL(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OvenEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.OvenEvent{}
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (models.OvenEvent, error) {
	var (
		ev   models.OvenEvent
		meta sql.NullString
	)
	if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &meta); err != nil {
		return models.OvenEvent{}, err
	}
	ev.OccurredAt = ev.OccurredAt.UTC()

	if meta.Valid && meta.String != "" {
		var decoded any
		if err := json.Unmarshal([]byte(meta.String), &decoded); err != nil {
			// malformed rows still surface their raw text
			ev.Metadata = meta.String
		} else {
			ev.Metadata = decoded
		}
	}
	return ev, nil
}
