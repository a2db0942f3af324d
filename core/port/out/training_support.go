package out

import (
	"context"

	"training_server/core/domain"
)

// Localizer resolves a message key for a locale.
type Localizer interface {
	Localize(locale, key string, args ...any) string
}

// TelemetrySink receives operation telemetry.
type TelemetrySink interface {
	TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64)
}

// SyncLogRepository stores the outcome of synchronizer operations.
type SyncLogRepository interface {
	Record(ctx context.Context, entry *domain.SyncLogEntry) error
	ListByEvent(ctx context.Context, eventID string, limit int) ([]*domain.SyncLogEntry, error)
}

// SearchIndexPort queries the training event search index.
type SearchIndexPort interface {
	// SearchEvents returns every match for an OData filter, fetched pageSize documents at a time.
	SearchEvents(ctx context.Context, filter string, pageSize int) ([]*domain.EventRecord, error)
}

// ReminderPublisher enqueues reminders for the notification front-end.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, job *domain.ReminderJob) error
}
