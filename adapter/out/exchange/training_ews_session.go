package exchange

import (
	"context"
	"errors"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/logger"
)

const (
	fieldSubject           = "item:Subject"
	fieldBody              = "item:Body"
	fieldStart             = "calendar:Start"
	fieldEnd               = "calendar:End"
	fieldLocation          = "calendar:Location"
	fieldRequiredAttendees = "calendar:RequiredAttendees"
	fieldOptionalAttendees = "calendar:OptionalAttendees"
	fieldRecurrence        = "calendar:Recurrence"
	fieldIsMeeting         = "calendar:IsMeeting"
)

// session impersonates a single mailbox.
type session struct {
	client  *Client
	mailbox string
}

func (s *session) CreateAppointment(ctx context.Context, ev *domain.CalendarEvent) (string, error) {
	if ev == nil {
		return "", apperr.MappingPrecondition("calendar event is required")
	}

	item := toCalendarItem(ev)
	item.ReminderDueBy = s.client.now().UTC().Format(domain.RoundTripLayout)

	req := createItem{
		SendMeetingInvitations: sendToAllAndSaveCopy,
		SavedItemFolderID:      savedItemFolder{Folder: distinguishedFolder{ID: "calendar"}},
	}
	req.Items.CalendarItem = item

	messages, err := s.client.call(ctx, s.mailbox, "CreateItem", req)
	if err != nil {
		return "", err
	}
	for _, m := range messages {
		for _, ci := range m.Items.CalendarItems {
			if ci.ItemID.ID != "" {
				return ci.ItemID.ID, nil
			}
		}
	}
	return "", apperr.BackendTransportFailed("ews", "CreateItem", errors.New("response carried no item id"))
}

func (s *session) UpdateAppointment(ctx context.Context, id string, ev *domain.CalendarEvent) error {
	if ev == nil {
		return apperr.MappingPrecondition("calendar event is required")
	}
	if id == "" {
		return apperr.MissingField("item_id")
	}

	current, err := s.getItem(ctx, id)
	if err != nil {
		return err
	}

	// Invitations always go out with the save; the computed mode is kept for diagnostics.
	mode := sendToNone
	if current.IsMeeting {
		mode = sendToAllAndSaveCopy
	}
	logger.WithContext(ctx).WithFields(map[string]any{
		"mailbox":         s.mailbox,
		"item_id":         id,
		"is_meeting":      current.IsMeeting,
		"computed_mode":   mode,
		"invitation_mode": sendToAllAndSaveCopy,
	}).Debug("[EWS] updating appointment")

	req := updateItem{
		ConflictResolution: alwaysOverwrite,
		SendInvitations:    sendToAllAndSaveCopy,
		Changes: itemChange{
			ItemID:  current.ItemID,
			Updates: updates{Changes: buildChanges(ev)},
		},
	}
	_, err = s.client.call(ctx, s.mailbox, "UpdateItem", req)
	return err
}

func (s *session) DeleteAppointment(ctx context.Context, id string) error {
	if id == "" {
		return apperr.MissingField("item_id")
	}
	req := deleteItem{
		DeleteType:        moveToDeletedItems,
		SendCancellations: sendToAllAndSaveCopy,
		ItemIDs:           []itemID{{ID: id}},
	}
	_, err := s.client.call(ctx, s.mailbox, "DeleteItem", req)
	return err
}

func (s *session) getItem(ctx context.Context, id string) (*calendarItemResult, error) {
	req := getItem{
		Shape: itemShape{
			BaseShape:  "IdOnly",
			Additional: []fieldURI{{URI: fieldIsMeeting}},
		},
		ItemIDs: []itemID{{ID: id}},
	}
	messages, err := s.client.call(ctx, s.mailbox, "GetItem", req)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if len(m.Items.CalendarItems) > 0 {
			found := m.Items.CalendarItems[0]
			if found.ItemID.ID == "" {
				found.ItemID.ID = id
			}
			return &found, nil
		}
	}
	return nil, apperr.BackendTransportFailed("ews", "GetItem", errors.New("appointment not found")).
		WithDetail("item_id", id)
}

func toCalendarItem(ev *domain.CalendarEvent) calendarItem {
	item := calendarItem{
		Subject:  ev.Subject,
		Body:     &bodyContent{Type: "HTML", Content: ev.Body},
		Start:    ev.Start.DateTime,
		End:      ev.End.DateTime,
		Location: ev.Location,
	}
	required, optional := partitionAttendees(ev.Attendees)
	item.RequiredAttendees = required
	item.OptionalAttendees = optional
	if ev.Recurrence != nil {
		item.Recurrence = toRecurrence(ev.Recurrence)
	}
	return item
}

func toRecurrence(r *domain.Recurrence) *recurrence {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	return &recurrence{
		Daily: dailyRecurrence{Interval: interval},
		Range: endDateRecurrence{StartDate: r.StartDate, EndDate: r.EndDate},
	}
}

func partitionAttendees(list []domain.Attendee) (required, optional *attendees) {
	for _, a := range list {
		entry := attendee{Mailbox: mailbox{Name: a.Name, EmailAddress: a.Email}}
		if a.Type == domain.AttendeeOptional {
			if optional == nil {
				optional = &attendees{}
			}
			optional.Attendee = append(optional.Attendee, entry)
			continue
		}
		if required == nil {
			required = &attendees{}
		}
		required.Attendee = append(required.Attendee, entry)
	}
	return required, optional
}

// buildChanges sets every mapped field and clears the ones the event leaves empty.
func buildChanges(ev *domain.CalendarEvent) []any {
	set := func(uri string, item calendarItem) any {
		return setItemField{Field: fieldURI{URI: uri}, CalendarItem: item}
	}
	unset := func(uri string) any {
		return deleteItemField{Field: fieldURI{URI: uri}}
	}

	changes := []any{
		set(fieldSubject, calendarItem{Subject: ev.Subject}),
		set(fieldBody, calendarItem{Body: &bodyContent{Type: "HTML", Content: ev.Body}}),
		set(fieldStart, calendarItem{Start: ev.Start.DateTime}),
		set(fieldEnd, calendarItem{End: ev.End.DateTime}),
	}

	if ev.Location != "" {
		changes = append(changes, set(fieldLocation, calendarItem{Location: ev.Location}))
	} else {
		changes = append(changes, unset(fieldLocation))
	}

	required, optional := partitionAttendees(ev.Attendees)
	if required != nil {
		changes = append(changes, set(fieldRequiredAttendees, calendarItem{RequiredAttendees: required}))
	} else {
		changes = append(changes, unset(fieldRequiredAttendees))
	}
	if optional != nil {
		changes = append(changes, set(fieldOptionalAttendees, calendarItem{OptionalAttendees: optional}))
	} else {
		changes = append(changes, unset(fieldOptionalAttendees))
	}

	if ev.Recurrence != nil {
		changes = append(changes, set(fieldRecurrence, calendarItem{Recurrence: toRecurrence(ev.Recurrence)}))
	}
	return changes
}

var _ out.OnPremSession = (*session)(nil)
