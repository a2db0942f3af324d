package reminder

import (
	"context"
	"time"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/core/service/calendar"
	"training_server/pkg/apperr"
	"training_server/pkg/logger"
)

const defaultBatchSize = 500

// Service implements in.ReminderService.
type Service struct {
	search    out.SearchIndexPort
	publisher out.ReminderPublisher
	batchSize int
}

func NewService(search out.SearchIndexPort, publisher out.ReminderPublisher, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{search: search, publisher: publisher, batchSize: batchSize}
}

func (s *Service) DayBeforeFilter(now time.Time) string {
	return GenerateDayBeforeFilter(now)
}

// DispatchDayBeforeReminders queues one reminder per event starting tomorrow.
// Publishing continues past individual failures; the first failure is returned.
func (s *Service) DispatchDayBeforeReminders(ctx context.Context, now time.Time) (int, error) {
	filter := GenerateDayBeforeFilter(now)
	log := logger.WithContext(ctx).WithField("filter", filter)

	events, err := s.search.SearchEvents(ctx, filter, s.batchSize)
	if err != nil {
		return 0, apperr.ExternalError("search", err)
	}

	var firstErr error
	sent := 0
	for _, ev := range events {
		job := &domain.ReminderJob{
			EventID:             ev.ID,
			EventName:           ev.Name,
			StartDate:           ev.StartDate.UTC(),
			RegisteredAttendees: calendar.SplitIdentifiers(ev.RegisteredAttendees),
			GeneratedAt:         now.UTC(),
		}
		if err := s.publisher.PublishReminder(ctx, job); err != nil {
			log.WithError(err).Warn("[ReminderService] failed to queue reminder for %s", ev.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}

	log.Info("[ReminderService] queued %d/%d day-before reminders", sent, len(events))
	return sent, firstErr
}
