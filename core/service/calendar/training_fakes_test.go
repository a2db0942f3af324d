package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"training_server/core/domain"
	"training_server/core/port/out"

	"golang.org/x/oauth2"
)

type fakeDirectory struct {
	users   map[string]*domain.DirectoryProfile
	err     error
	lookups []string
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (*domain.DirectoryProfile, error) {
	f.lookups = append(f.lookups, id)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return p, nil
}

// ResolveProfiles echoes identifiers as profiles so ordering is observable.
func (f *fakeDirectory) ResolveProfiles(_ context.Context, ids []string) ([]*domain.DirectoryProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	profiles := make([]*domain.DirectoryProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.users[id]; ok {
			profiles = append(profiles, p)
			continue
		}
		profiles = append(profiles, &domain.DirectoryProfile{
			ID:                id,
			UserPrincipalName: id,
			DisplayName:       strings.ToUpper(id[:1]),
		})
	}
	return profiles, nil
}

type fakeTokens struct {
	userErr error
	appErr  error
}

func (f *fakeTokens) UserToken(_ context.Context, userID, assertion string) (*oauth2.Token, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return &oauth2.Token{AccessToken: "user:" + userID}, nil
}

func (f *fakeTokens) AppToken(context.Context) (*oauth2.Token, error) {
	if f.appErr != nil {
		return nil, f.appErr
	}
	return &oauth2.Token{AccessToken: "app"}, nil
}

type cloudCall struct {
	op      string
	token   string
	userID  string
	eventID string
	comment string
	event   *domain.CalendarEvent
}

type fakeCloud struct {
	calls   []cloudCall
	err     error
	meeting *domain.OnlineMeeting
}

func (f *fakeCloud) CreateEvent(_ context.Context, token *oauth2.Token, ev *domain.CalendarEvent) (*domain.CreatedEvent, error) {
	f.calls = append(f.calls, cloudCall{op: "create", token: token.AccessToken, event: ev})
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CreatedEvent{ID: "graph-1"}, nil
}

func (f *fakeCloud) UpdateEvent(_ context.Context, token *oauth2.Token, userID, eventID string, ev *domain.CalendarEvent) (*domain.CreatedEvent, error) {
	f.calls = append(f.calls, cloudCall{op: "update", token: token.AccessToken, userID: userID, eventID: eventID, event: ev})
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CreatedEvent{ID: eventID}, nil
}

func (f *fakeCloud) CancelEvent(_ context.Context, token *oauth2.Token, userID, eventID, comment string) error {
	f.calls = append(f.calls, cloudCall{op: "cancel", token: token.AccessToken, userID: userID, eventID: eventID, comment: comment})
	return f.err
}

func (f *fakeCloud) CreateOnlineMeeting(_ context.Context, token *oauth2.Token, subject string, start, end time.Time) (*domain.OnlineMeeting, error) {
	f.calls = append(f.calls, cloudCall{op: "meeting", token: token.AccessToken})
	if f.err != nil {
		return nil, f.err
	}
	if f.meeting != nil {
		return f.meeting, nil
	}
	return &domain.OnlineMeeting{ID: "m1", JoinURL: "https://teams/join", JoinContent: "<div>join</div>"}, nil
}

type fakeOnPrem struct {
	connectErr error
	opErr      error
	mailboxes  []string
	session    *fakeSession
}

func (f *fakeOnPrem) Connect(_ context.Context, mailbox string) (out.OnPremSession, error) {
	f.mailboxes = append(f.mailboxes, mailbox)
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	if f.session == nil {
		f.session = &fakeSession{err: f.opErr}
	}
	return f.session, nil
}

type fakeSession struct {
	err     error
	created []*domain.CalendarEvent
	updated map[string]*domain.CalendarEvent
	deleted []string
}

func (s *fakeSession) CreateAppointment(_ context.Context, ev *domain.CalendarEvent) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.created = append(s.created, ev)
	return "AAMkItem=", nil
}

func (s *fakeSession) UpdateAppointment(_ context.Context, itemID string, ev *domain.CalendarEvent) error {
	if s.err != nil {
		return s.err
	}
	if s.updated == nil {
		s.updated = map[string]*domain.CalendarEvent{}
	}
	s.updated[itemID] = ev
	return nil
}

func (s *fakeSession) DeleteAppointment(_ context.Context, itemID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, itemID)
	return nil
}

type fakeSyncLog struct {
	mu      sync.Mutex
	entries []*domain.SyncLogEntry
	err     error
}

func (f *fakeSyncLog) Record(_ context.Context, entry *domain.SyncLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

func (f *fakeSyncLog) ListByEvent(_ context.Context, eventID string, limit int) ([]*domain.SyncLogEntry, error) {
	var result []*domain.SyncLogEntry
	for i := len(f.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if f.entries[i].EventID == eventID {
			result = append(result, f.entries[i])
		}
	}
	return result, nil
}

type fakeTelemetry struct {
	names []string
}

func (f *fakeTelemetry) TrackEvent(_ context.Context, name string, _ map[string]string, _ map[string]float64) {
	f.names = append(f.names, name)
}

type fakeLocalizer struct{}

func (fakeLocalizer) Localize(locale, key string, args ...any) string {
	return fmt.Sprintf("[%s:%s]%v", locale, key, args)
}

var errBoom = errors.New("boom")

func boolPtr(b bool) *bool { return &b }
