package domain

import "time"

// EventAudience controls who may register for a training event.
type EventAudience int

const (
	AudiencePublic  EventAudience = 1
	AudiencePrivate EventAudience = 2
)

// EventType selects how attendees join.
type EventType int

const (
	EventTypeInPerson  EventType = 1
	EventTypeTeams     EventType = 2
	EventTypeLiveEvent EventType = 3
)

func (t EventType) String() string {
	switch t {
	case EventTypeInPerson:
		return "in_person"
	case EventTypeTeams:
		return "teams"
	case EventTypeLiveEvent:
		return "live_event"
	default:
		return "unknown"
	}
}

// EventStatus is the lifecycle state kept by the event-management side.
type EventStatus int

const (
	EventStatusDraft     EventStatus = 1
	EventStatusActive    EventStatus = 2
	EventStatusCancelled EventStatus = 3
	EventStatusCompleted EventStatus = 4
)

// EventRecord is a training event as owned by the event-management application.
// Only GraphEventID is written by the synchronizer.
type EventRecord struct {
	ID                       string        `json:"id"`
	Name                     string        `json:"name"`
	Description              string        `json:"description"`
	Audience                 EventAudience `json:"audience"`
	Type                     EventType     `json:"type"`
	Venue                    string        `json:"venue,omitempty"`
	MeetingLink              string        `json:"meeting_link,omitempty"`
	StartDate                time.Time     `json:"start_date"`
	EndTime                  time.Time     `json:"end_time"` // clock part only
	EndDate                  time.Time     `json:"end_date"`
	NumberOfOccurrences      int           `json:"number_of_occurrences"`
	IsAutoRegister           bool          `json:"is_auto_register"`
	RegisteredAttendees      string        `json:"registered_attendees,omitempty"`
	AutoRegisteredAttendees  string        `json:"auto_registered_attendees,omitempty"`
	CreatedBy                string        `json:"created_by"`
	GraphEventID             string        `json:"graph_event_id,omitempty"`
	Status                   EventStatus   `json:"status"`
	RegisteredAttendeesCount int           `json:"registered_attendees_count"`
}

// AttendeeType mirrors the Graph attendee type values.
type AttendeeType string

const (
	AttendeeRequired AttendeeType = "required"
	AttendeeOptional AttendeeType = "optional"
)

type Attendee struct {
	Email string       `json:"email"`
	Name  string       `json:"name"`
	Type  AttendeeType `json:"type"`
}

// DateTimeZone is a wall-clock timestamp plus the zone it is expressed in.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Recurrence is a daily pattern bounded by an end date.
type Recurrence struct {
	Type      string `json:"type"`
	Interval  int    `json:"interval"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CalendarEvent is the backend-neutral event built from an EventRecord.
type CalendarEvent struct {
	Subject               string       `json:"subject"`
	Body                  string       `json:"body"`
	Start                 DateTimeZone `json:"start"`
	End                   DateTimeZone `json:"end"`
	Recurrence            *Recurrence  `json:"recurrence,omitempty"`
	Location              string       `json:"location,omitempty"`
	IsOnlineMeeting       bool         `json:"is_online_meeting"`
	OnlineMeetingProvider string       `json:"online_meeting_provider,omitempty"`
	OnlineMeetingURL      string       `json:"online_meeting_url,omitempty"`
	Attendees             []Attendee   `json:"attendees,omitempty"`
}

// CreatedEvent is what a backend returns after a create.
type CreatedEvent struct {
	ID     string `json:"id"`
	WebURL string `json:"web_url,omitempty"`
}

// OnlineMeeting is a provisioned Teams meeting.
type OnlineMeeting struct {
	ID          string `json:"id"`
	JoinURL     string `json:"join_url"`
	JoinContent string `json:"join_content"` // decoded HTML join block
}

// DirectoryProfile is the subset of a directory user the synchronizer reads.
type DirectoryProfile struct {
	ID                    string `json:"id"`
	UserPrincipalName     string `json:"user_principal_name"`
	DisplayName           string `json:"display_name"`
	Mail                  string `json:"mail,omitempty"`
	OnPremisesSyncEnabled *bool  `json:"on_premises_sync_enabled,omitempty"`
}

// Address returns the mailbox address to invite.
func (p DirectoryProfile) Address() string {
	if p.Mail != "" {
		return p.Mail
	}
	return p.UserPrincipalName
}

// BackendRoute selects the calendar backend for one operation.
type BackendRoute string

const (
	RouteCloud      BackendRoute = "cloud"
	RouteOnPremises BackendRoute = "on_premises"
)

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	UserID        string
	UserAssertion string // caller's bearer token, exchanged on-behalf-of
	Locale        string
}

// SyncOperation names the synchronizer operations recorded in the sync log.
type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "create"
	SyncOperationUpdate SyncOperation = "update"
	SyncOperationCancel SyncOperation = "cancel"
)

// Layouts used on the wire. RoundTripLayout renders UTC with a Z suffix and
// never depends on the host locale.
const (
	RoundTripLayout = "2006-01-02T15:04:05.0000000Z07:00"
	DateLayout      = "2006-01-02"
	TimeZoneUTC     = "UTC"
)
