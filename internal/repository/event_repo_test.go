package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"reflow_oven/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newEventMock(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewEventSQLite(db), mock
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"})
}

func TestJournalSQL(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	base := "SELECT id, occurred_at, type, message, meta FROM oven_events"

	tests := []struct {
		name      string
		q         models.JournalQuery
		wantSQL   string
		wantNArgs int
	}{
		{
			name:    "everything",
			wantSQL: base + " ORDER BY occurred_at ASC",
		},
		{
			name:      "range and type",
			q:         models.JournalQuery{From: from, To: to, Type: " fault "},
			wantSQL:   base + " WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC",
			wantNArgs: 3,
		},
		{
			name:      "newest n",
			q:         models.JournalQuery{Type: "anomaly", Limit: 5},
			wantSQL:   "SELECT id, occurred_at, type, message, meta FROM (" + base + " WHERE type = ? ORDER BY occurred_at DESC LIMIT ?) ORDER BY occurred_at ASC",
			wantNArgs: 2,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotSQL, args := journalSQL(tc.q)
			if gotSQL != tc.wantSQL {
				t.Fatalf("sql:\n got %s\nwant %s", gotSQL, tc.wantSQL)
			}
			if len(args) != tc.wantNArgs {
				t.Fatalf("args = %v, want %d", args, tc.wantNArgs)
			}
		})
	}
}

func TestEventAppend_FillsIDAndTime(t *testing.T) {
	t.Parallel()
	repo, mock := newEventMock(t)

	mock.ExpectExec(regexp.QuoteMeta(appendEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.EventFault, "thermocouple open", `{"fault":2}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.OvenEvent{
		Type:        "  fault ",
		Description: "thermocouple open",
		Metadata:    map[string]any{"fault": 2},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventAppend_StoresUTCMillis(t *testing.T) {
	t.Parallel()
	repo, mock := newEventMock(t)

	cet := time.FixedZone("CET", 3600)
	mock.ExpectExec(regexp.QuoteMeta(appendEventSQL)).
		WithArgs("ev-1", "2025-06-01 11:30:15.250", models.EventStart, "run started", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.OvenEvent{
		EventID:     "ev-1",
		OccurredAt:  time.Date(2025, 6, 1, 12, 30, 15, 250_000_000, cet),
		Type:        models.EventStart,
		Description: "run started",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventAppend_WrapsDBError(t *testing.T) {
	t.Parallel()
	repo, mock := newEventMock(t)

	down := errors.New("disk full")
	mock.ExpectExec("INSERT INTO oven_events").WillReturnError(down)

	err := repo.Append(ctx(t), models.OvenEvent{Type: models.EventError, Description: "x"})
	if !errors.Is(err, down) || !strings.Contains(err.Error(), "ERROR") {
		t.Fatalf("expected wrapped error naming the type, got %v", err)
	}
}

func TestEventList_DecodesMetadata(t *testing.T) {
	t.Parallel()
	repo, mock := newEventMock(t)

	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	meta, _ := json.Marshal(map[string]any{"profile": "Sn63Pb37"})

	query, _ := journalSQL(models.JournalQuery{})
	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(eventRows().
		AddRow("1", at, models.EventStart, "m1", string(meta)).
		AddRow("2", at.Add(time.Hour), models.EventFault, "m2", nil).
		AddRow("3", at.Add(2*time.Hour), models.EventError, "m3", "not json"))

	got, err := repo.List(ctx(t), models.JournalQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].EventID != "1" || got[2].EventID != "3" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if b, _ := json.Marshal(got[0].Metadata); string(b) != string(meta) {
		t.Fatalf("metadata = %s, want %s", b, meta)
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil metadata, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "not json" {
		t.Fatalf("malformed metadata must be kept raw, got %#v", got[2].Metadata)
	}
}

func TestEventList_LimitArgs(t *testing.T) {
	t.Parallel()
	repo, mock := newEventMock(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	q := models.JournalQuery{From: from, Type: "fault", Limit: 1}
	query, _ := journalSQL(q)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00.000", models.EventFault, 1).
		WillReturnRows(eventRows().AddRow("9", from.Add(time.Minute), models.EventFault, "latest", nil))

	got, err := repo.List(ctx(t), q)
	if err != nil || len(got) != 1 || got[0].EventID != "9" {
		t.Fatalf("List = %+v, %v", got, err)
	}
}

func TestEventList_EmptyIsNotNil(t *testing.T) {
	t.Parallel()
	repo, mock := newEventMock(t)

	mock.ExpectQuery("SELECT id, occurred_at").WillReturnRows(eventRows())

	got, err := repo.List(ctx(t), models.JournalQuery{})
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("List = %#v, %v", got, err)
	}
}

func TestEventList_Errors(t *testing.T) {
	t.Parallel()

	t.Run("query", func(t *testing.T) {
		repo, mock := newEventMock(t)
		mock.ExpectQuery("SELECT id, occurred_at").WillReturnError(sql.ErrConnDone)
		if _, err := repo.List(ctx(t), models.JournalQuery{}); !errors.Is(err, sql.ErrConnDone) {
			t.Fatalf("expected ErrConnDone, got %v", err)
		}
	})

	t.Run("scan", func(t *testing.T) {
		repo, mock := newEventMock(t)
		// occurred_at of the wrong type
		mock.ExpectQuery("SELECT id, occurred_at").
			WillReturnRows(eventRows().AddRow("x", 123, models.EventStart, "msg", nil))
		if _, err := repo.List(ctx(t), models.JournalQuery{}); err == nil {
			t.Fatalf("expected scan error")
		}
	})
}
