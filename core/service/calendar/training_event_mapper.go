package calendar

import (
	"html"
	"time"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
)

// Localization keys used in event bodies.
const (
	KeyJoinLiveEvent = "join_live_event"
)

const (
	onlineMeetingProviderTeams = "teamsForBusiness"
	recurrenceDaily            = "daily"
)

// MapMode selects create or update attendee rules.
type MapMode int

const (
	MapForCreate MapMode = iota
	MapForUpdate
)

// EventMapper converts EventRecords into CalendarEvents.
type EventMapper struct {
	localizer out.Localizer
}

func NewEventMapper(localizer out.Localizer) *EventMapper {
	return &EventMapper{localizer: localizer}
}

// AttendeesOnCreate reports whether a newly created event carries attendees.
func AttendeesOnCreate(rec *domain.EventRecord) bool {
	return rec.IsAutoRegister && rec.Audience == domain.AudiencePrivate
}

// EventWindow returns the UTC start and end of the first occurrence.
// The end is the start's calendar date at EndTime's clock and may not precede the start.
func EventWindow(rec *domain.EventRecord) (time.Time, time.Time, error) {
	start := rec.StartDate
	loc := start.Location()
	endClock := rec.EndTime.In(loc)
	end := time.Date(start.Year(), start.Month(), start.Day(),
		endClock.Hour(), endClock.Minute(), endClock.Second(), endClock.Nanosecond(), loc)
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.MappingPrecondition("event ends before it starts").
			WithDetail("start", start.UTC().Format(time.RFC3339)).
			WithDetail("end", end.UTC().Format(time.RFC3339))
	}
	return start.UTC(), end.UTC(), nil
}

// MapToCalendarEvent builds the calendar representation of rec.
// attendees is used as-is when the mode and record allow attendees.
func (m *EventMapper) MapToCalendarEvent(rec *domain.EventRecord, attendees []domain.Attendee, locale string, mode MapMode) (*domain.CalendarEvent, error) {
	if rec == nil {
		return nil, apperr.MappingPrecondition("event record is nil")
	}

	start, end, err := EventWindow(rec)
	if err != nil {
		return nil, err
	}
	ev := &domain.CalendarEvent{
		Subject: rec.Name,
		Body:    m.body(rec, locale),
		Start:   utcStamp(start),
		End:     utcStamp(end),
	}

	switch rec.Type {
	case domain.EventTypeInPerson:
		ev.Location = rec.Venue
	case domain.EventTypeTeams:
		ev.IsOnlineMeeting = true
		ev.OnlineMeetingProvider = onlineMeetingProviderTeams
	case domain.EventTypeLiveEvent:
		ev.OnlineMeetingURL = rec.MeetingLink
	}

	// A non-nil empty list on update clears attendees removed since the last sync.
	if mode == MapForUpdate || AttendeesOnCreate(rec) {
		ev.Attendees = make([]domain.Attendee, len(attendees))
		copy(ev.Attendees, attendees)
	}

	if rec.NumberOfOccurrences > 1 {
		ev.Recurrence = &domain.Recurrence{
			Type:      recurrenceDaily,
			Interval:  1,
			StartDate: start.Format(domain.DateLayout),
			EndDate:   rec.EndDate.UTC().Format(domain.DateLayout),
		}
	}

	return ev, nil
}

func (m *EventMapper) body(rec *domain.EventRecord, locale string) string {
	body := html.EscapeString(rec.Description)
	if rec.Type == domain.EventTypeLiveEvent && m.localizer != nil {
		body += "<br/>" + m.localizer.Localize(locale, KeyJoinLiveEvent, html.EscapeString(rec.MeetingLink))
	}
	return body
}

func utcStamp(t time.Time) domain.DateTimeZone {
	return domain.DateTimeZone{
		DateTime: t.UTC().Format(domain.RoundTripLayout),
		TimeZone: domain.TimeZoneUTC,
	}
}
