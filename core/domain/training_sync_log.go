package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncLogEntry records the outcome of one synchronizer operation.
type SyncLogEntry struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	EventID        string        `json:"event_id" db:"event_id"`
	Operation      SyncOperation `json:"operation" db:"operation"`
	Route          BackendRoute  `json:"route" db:"route"`
	ActorID        string        `json:"actor_id" db:"actor_id"`
	Succeeded      bool          `json:"succeeded" db:"succeeded"`
	FailureCode    string        `json:"failure_code,omitempty" db:"failure_code"`
	FailureMessage string        `json:"failure_message,omitempty" db:"failure_message"`
	BackendEventID string        `json:"backend_event_id,omitempty" db:"backend_event_id"`
	Attendees      []string      `json:"attendees,omitempty" db:"-"`
	DurationMs     int64         `json:"duration_ms" db:"duration_ms"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// ReminderJob is one day-before reminder queued for the notification front-end.
type ReminderJob struct {
	EventID             string    `json:"event_id"`
	EventName           string    `json:"event_name"`
	StartDate           time.Time `json:"start_date"`
	RegisteredAttendees []string  `json:"registered_attendees,omitempty"`
	GeneratedAt         time.Time `json:"generated_at"`
}
