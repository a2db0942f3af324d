package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"training_server/core/domain"
	"training_server/pkg/apperr"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	prefer string
	body   map[string]any
}

func newGraphServer(t *testing.T, status int, response string) (*GraphCalendarAdapter, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			prefer: r.Header.Get("Prefer"),
		}
		_ = json.Unmarshal(raw, &rec.body)
		requests = append(requests, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	adapter := NewGraphCalendarAdapter(GraphCalendarConfig{
		BaseURL:    srv.URL + "/v1.0",
		BetaURL:    srv.URL + "/beta",
		HTTPClient: srv.Client(),
	})
	return adapter, &requests
}

func sampleEvent() *domain.CalendarEvent {
	return &domain.CalendarEvent{
		Subject: "Go onboarding",
		Body:    "Bring a laptop",
		Start:   domain.DateTimeZone{DateTime: "2026-03-10T09:30:00.0000000Z", TimeZone: "UTC"},
		End:     domain.DateTimeZone{DateTime: "2026-03-10T11:00:00.0000000Z", TimeZone: "UTC"},
		Recurrence: &domain.Recurrence{
			Type: "daily", Interval: 1, StartDate: "2026-03-10", EndDate: "2026-03-12",
		},
		IsOnlineMeeting:       true,
		OnlineMeetingProvider: "teamsForBusiness",
		Attendees: []domain.Attendee{
			{Email: "a@x.com", Name: "A", Type: domain.AttendeeRequired},
		},
	}
}

func TestGraphCreateEvent(t *testing.T) {
	adapter, requests := newGraphServer(t, http.StatusCreated, `{"id":"AAMk-1","webLink":"https://outlook/e/1"}`)

	created, err := adapter.CreateEvent(context.Background(), &oauth2.Token{AccessToken: "user-token"}, sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "AAMk-1", created.ID)
	assert.Equal(t, "https://outlook/e/1", created.WebURL)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1.0/me/events", req.path)
	assert.Equal(t, "Bearer user-token", req.auth)
	assert.Equal(t, `outlook.timezone="UTC"`, req.prefer)

	assert.Equal(t, "Go onboarding", req.body["subject"])
	assert.Equal(t, true, req.body["isOnlineMeeting"])
	assert.Equal(t, "teamsForBusiness", req.body["onlineMeetingProvider"])
	assert.NotContains(t, req.body, "location")

	recurrence := req.body["recurrence"].(map[string]any)
	assert.Equal(t, "daily", recurrence["pattern"].(map[string]any)["type"])
	assert.Equal(t, "2026-03-12", recurrence["range"].(map[string]any)["endDate"])

	attendees := req.body["attendees"].([]any)
	require.Len(t, attendees, 1)
	assert.Equal(t, "required", attendees[0].(map[string]any)["type"])
}

func TestGraphUpdateEventTargetsUserCalendar(t *testing.T) {
	adapter, requests := newGraphServer(t, http.StatusOK, `{"id":"AAMk-1"}`)

	ev := sampleEvent()
	ev.Attendees = []domain.Attendee{}
	_, err := adapter.UpdateEvent(context.Background(), &oauth2.Token{AccessToken: "app-token"}, "owner-1", "AAMk-1", ev)
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, "/v1.0/users/owner-1/events/AAMk-1", req.path)
	assert.Equal(t, "Bearer app-token", req.auth)
	assert.Equal(t, `outlook.timezone="UTC"`, req.prefer)
	assert.Equal(t, []any{}, req.body["attendees"])
}

func TestGraphCancelEvent(t *testing.T) {
	adapter, requests := newGraphServer(t, http.StatusAccepted, ``)

	err := adapter.CancelEvent(context.Background(), &oauth2.Token{AccessToken: "app-token"}, "owner-1", "AAMk-1", "Trainer unavailable")
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, "/v1.0/users/owner-1/events/AAMk-1/cancel", req.path)
	assert.Equal(t, "Trainer unavailable", req.body["comment"])
}

func TestGraphErrorsAreTyped(t *testing.T) {
	tests := []struct {
		status int
		want   *apperr.AppError
	}{
		{http.StatusUnauthorized, apperr.ErrAuthentication},
		{http.StatusForbidden, apperr.ErrAuthentication},
		{http.StatusServiceUnavailable, apperr.ErrBackendTransport},
		{http.StatusNotFound, apperr.ErrBackendTransport},
		{http.StatusTooManyRequests, apperr.ErrBackendTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			adapter, _ := newGraphServer(t, tt.status, `{"error":{"code":"x"}}`)

			err := adapter.CancelEvent(context.Background(), &oauth2.Token{AccessToken: "t"}, "u", "e", "")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, apperr.AsAppError(err).Details["status"])
			assert.Equal(t, tt.status == http.StatusNotFound, apperr.IsBackendRejection(err))
		})
	}
}

func TestGraphPerUserFailuresDoNotOpenSharedBreaker(t *testing.T) {
	var hits atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusForbidden)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	adapter := NewGraphCalendarAdapter(GraphCalendarConfig{BaseURL: srv.URL, BetaURL: srv.URL, HTTPClient: srv.Client()})
	token := &oauth2.Token{AccessToken: "t"}

	for _, failing := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest, http.StatusConflict} {
		status.Store(int32(failing))
		for i := 0; i < 6; i++ {
			assert.Error(t, adapter.CancelEvent(context.Background(), token, "user-a", "ev-1", ""))
		}
	}
	assert.Equal(t, "closed", adapter.cb.State())

	status.Store(http.StatusAccepted)
	require.NoError(t, adapter.CancelEvent(context.Background(), token, "user-b", "ev-2", ""))
	assert.EqualValues(t, 25, hits.Load())
}

func TestGraphServerFailuresOpenBreaker(t *testing.T) {
	adapter, requests := newGraphServer(t, http.StatusServiceUnavailable, ``)
	token := &oauth2.Token{AccessToken: "t"}

	for i := 0; i < 6; i++ {
		assert.ErrorIs(t, adapter.CancelEvent(context.Background(), token, "user-a", "ev-1", ""), apperr.ErrBackendTransport)
	}
	assert.Equal(t, "open", adapter.cb.State())

	err := adapter.CancelEvent(context.Background(), token, "user-b", "ev-2", "")
	assert.ErrorIs(t, err, apperr.ErrBackendTransport)
	assert.Equal(t, true, apperr.AsAppError(err).Details["circuit_open"])
	assert.Len(t, *requests, 6)
}

func TestGraphCreateOnlineMeeting(t *testing.T) {
	adapter, requests := newGraphServer(t, http.StatusCreated, `{
		"id": "meeting-1",
		"joinWebUrl": "https://teams.microsoft.com/l/meetup-join/1",
		"joinInformation": {"content": "data:text/html,%3cdiv%3eJoin+now%3c%2fdiv%3e", "contentType": "html"}
	}`)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	meeting, err := adapter.CreateOnlineMeeting(context.Background(), &oauth2.Token{AccessToken: "user-token"}, "Go onboarding", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "<div>Join now</div>", meeting.JoinContent)
	assert.Equal(t, "https://teams.microsoft.com/l/meetup-join/1", meeting.JoinURL)

	req := (*requests)[0]
	assert.Equal(t, "/beta/me/onlineMeetings", req.path)
	assert.Equal(t, "2026-03-10T09:00:00.0000000Z", req.body["startDateTime"])
}

func TestDecodeJoinContent(t *testing.T) {
	got, err := DecodeJoinContent("data:text/html,%3Ca+href%3D%22x%22%3E")
	require.NoError(t, err)
	assert.Equal(t, `<a href="x">`, got)

	_, err = DecodeJoinContent("%zz")
	assert.Error(t, err)
}
