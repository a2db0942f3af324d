// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"time"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SyncLogSchema creates the calendar_sync_log table.
const SyncLogSchema = `
CREATE TABLE IF NOT EXISTS calendar_sync_log (
	id               UUID PRIMARY KEY,
	event_id         TEXT        NOT NULL,
	operation        TEXT        NOT NULL,
	route            TEXT        NOT NULL DEFAULT '',
	actor_id         TEXT        NOT NULL DEFAULT '',
	succeeded        BOOLEAN     NOT NULL,
	failure_code     TEXT,
	failure_message  TEXT,
	backend_event_id TEXT,
	attendees        TEXT[]      NOT NULL DEFAULT '{}',
	duration_ms      BIGINT      NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_calendar_sync_log_event ON calendar_sync_log (event_id, created_at DESC);
`

const defaultHistoryLimit = 20

// SyncLogAdapter implements out.SyncLogRepository using PostgreSQL.
type SyncLogAdapter struct {
	db *sqlx.DB
}

// NewSyncLogAdapter creates a new SyncLogAdapter.
func NewSyncLogAdapter(db *sqlx.DB) *SyncLogAdapter {
	return &SyncLogAdapter{db: db}
}

// syncLogRow represents the database row for a sync log entry.
type syncLogRow struct {
	ID             uuid.UUID      `db:"id"`
	EventID        string         `db:"event_id"`
	Operation      string         `db:"operation"`
	Route          string         `db:"route"`
	ActorID        string         `db:"actor_id"`
	Succeeded      bool           `db:"succeeded"`
	FailureCode    sql.NullString `db:"failure_code"`
	FailureMessage sql.NullString `db:"failure_message"`
	BackendEventID sql.NullString `db:"backend_event_id"`
	Attendees      pq.StringArray `db:"attendees"`
	DurationMs     int64          `db:"duration_ms"`
	CreatedAt      time.Time      `db:"created_at"`
}

func newSyncLogRow(e *domain.SyncLogEntry) *syncLogRow {
	attendees := pq.StringArray(e.Attendees)
	if attendees == nil {
		attendees = pq.StringArray{}
	}
	return &syncLogRow{
		ID:             e.ID,
		EventID:        e.EventID,
		Operation:      string(e.Operation),
		Route:          string(e.Route),
		ActorID:        e.ActorID,
		Succeeded:      e.Succeeded,
		FailureCode:    nullString(e.FailureCode),
		FailureMessage: nullString(e.FailureMessage),
		BackendEventID: nullString(e.BackendEventID),
		Attendees:      attendees,
		DurationMs:     e.DurationMs,
		CreatedAt:      e.CreatedAt,
	}
}

func (r *syncLogRow) toEntity() *domain.SyncLogEntry {
	return &domain.SyncLogEntry{
		ID:             r.ID,
		EventID:        r.EventID,
		Operation:      domain.SyncOperation(r.Operation),
		Route:          domain.BackendRoute(r.Route),
		ActorID:        r.ActorID,
		Succeeded:      r.Succeeded,
		FailureCode:    r.FailureCode.String,
		FailureMessage: r.FailureMessage.String,
		BackendEventID: r.BackendEventID.String,
		Attendees:      []string(r.Attendees),
		DurationMs:     r.DurationMs,
		CreatedAt:      r.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Record inserts entry, filling ID and CreatedAt when unset.
func (a *SyncLogAdapter) Record(ctx context.Context, entry *domain.SyncLogEntry) error {
	if entry == nil {
		return apperr.MissingField("sync log entry")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO calendar_sync_log (
			id, event_id, operation, route, actor_id, succeeded,
			failure_code, failure_message, backend_event_id, attendees,
			duration_ms, created_at
		) VALUES (
			:id, :event_id, :operation, :route, :actor_id, :succeeded,
			:failure_code, :failure_message, :backend_event_id, :attendees,
			:duration_ms, :created_at
		)
	`
	if _, err := a.db.NamedExecContext(ctx, query, newSyncLogRow(entry)); err != nil {
		return apperr.DatabaseError("record sync log", err)
	}
	return nil
}

// ListByEvent returns the newest entries for eventID first.
func (a *SyncLogAdapter) ListByEvent(ctx context.Context, eventID string, limit int) ([]*domain.SyncLogEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	const query = `
		SELECT id, event_id, operation, route, actor_id, succeeded,
		       failure_code, failure_message, backend_event_id, attendees,
		       duration_ms, created_at
		FROM calendar_sync_log
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var rows []syncLogRow
	if err := a.db.SelectContext(ctx, &rows, query, eventID, limit); err != nil {
		return nil, apperr.DatabaseError("list sync log", err)
	}

	entries := make([]*domain.SyncLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toEntity())
	}
	return entries, nil
}

var _ out.SyncLogRepository = (*SyncLogAdapter)(nil)
