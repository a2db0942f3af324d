// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"training_server/core/domain"

	"golang.org/x/oauth2"
)

// =============================================================================
// Calendar Backends (Microsoft Graph, Exchange Web Services)
// =============================================================================

// CloudCalendarPort issues calendar calls against Microsoft Graph.
type CloudCalendarPort interface {
	// CreateEvent creates ev in the token owner's own calendar.
	CreateEvent(ctx context.Context, token *oauth2.Token, ev *domain.CalendarEvent) (*domain.CreatedEvent, error)
	// UpdateEvent patches an event in userID's calendar; token must carry application permissions.
	UpdateEvent(ctx context.Context, token *oauth2.Token, userID, eventID string, ev *domain.CalendarEvent) (*domain.CreatedEvent, error)
	// CancelEvent cancels an event in userID's calendar and notifies attendees with comment.
	CancelEvent(ctx context.Context, token *oauth2.Token, userID, eventID, comment string) error
	// CreateOnlineMeeting provisions a Teams meeting owned by the token owner.
	CreateOnlineMeeting(ctx context.Context, token *oauth2.Token, subject string, start, end time.Time) (*domain.OnlineMeeting, error)
}

// OnPremCalendarPort opens impersonated sessions against an Exchange mailbox.
type OnPremCalendarPort interface {
	Connect(ctx context.Context, mailbox string) (OnPremSession, error)
}

// OnPremSession is scoped to one mailbox and one operation.
type OnPremSession interface {
	CreateAppointment(ctx context.Context, ev *domain.CalendarEvent) (string, error)
	UpdateAppointment(ctx context.Context, itemID string, ev *domain.CalendarEvent) error
	DeleteAppointment(ctx context.Context, itemID string) error
}
