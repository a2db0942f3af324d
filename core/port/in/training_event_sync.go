package in

import (
	"context"
	"time"

	"training_server/core/domain"
)

// EventSyncService mirrors training events into the organizer's calendar backend.
//
// Failures never panic: create and update return a nil record and cancel returns
// false, each together with a typed *apperr.AppError describing the cause.
type EventSyncService interface {
	CreateEvent(ctx context.Context, actor domain.Actor, rec *domain.EventRecord) (*domain.EventRecord, error)
	UpdateEvent(ctx context.Context, actor domain.Actor, rec *domain.EventRecord) (*domain.EventRecord, error)
	CancelEvent(ctx context.Context, actor domain.Actor, rec *domain.EventRecord, comment string) (bool, error)
	SyncHistory(ctx context.Context, eventID string, limit int) ([]*domain.SyncLogEntry, error)
}

// ReminderService selects and enqueues day-before reminders.
type ReminderService interface {
	DayBeforeFilter(now time.Time) string
	DispatchDayBeforeReminders(ctx context.Context, now time.Time) (int, error)
}
