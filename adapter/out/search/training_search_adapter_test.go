package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"training_server/core/domain"
	"training_server/pkg/apperr"
)

func newSearchServer(t *testing.T, handler func(req searchRequest) (int, string)) (*Adapter, *[]*http.Request) {
	t.Helper()
	var seen []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		seen = append(seen, r)
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewAdapter(Config{
		Endpoint:   srv.URL + "/",
		Index:      "training-events",
		APIKey:     "query-key",
		HTTPClient: srv.Client(),
	}), &seen
}

func TestSearchEventsDecodesDocuments(t *testing.T) {
	const filter = "Status eq 2"
	adapter, seen := newSearchServer(t, func(req searchRequest) (int, string) {
		assert.Equal(t, filter, req.Filter)
		assert.Equal(t, 10, req.Top)
		return http.StatusOK, `{"value":[{"@search.score":1,"Id":"ev-1","Name":"Go basics","StartDate":"2026-03-10T09:30:00Z",` +
			`"Status":2,"Type":2,"RegisteredAttendees":"u1;u2","RegisteredAttendeesCount":2}]}`
	})

	records, err := adapter.SearchEvents(context.Background(), filter, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "ev-1", rec.ID)
	assert.Equal(t, domain.EventStatusActive, rec.Status)
	assert.Equal(t, domain.EventTypeTeams, rec.Type)
	assert.Equal(t, "u1;u2", rec.RegisteredAttendees)
	assert.True(t, rec.StartDate.Equal(time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)))

	req := (*seen)[0]
	assert.Equal(t, "/indexes/training-events/docs/search", req.URL.Path)
	assert.Equal(t, defaultAPIVersion, req.URL.Query().Get("api-version"))
	assert.Equal(t, "query-key", req.Header.Get("api-key"))
}

func TestSearchEventsPagesUntilShortPage(t *testing.T) {
	adapter, seen := newSearchServer(t, func(req searchRequest) (int, string) {
		if req.Skip == 0 {
			return http.StatusOK, `{"value":[{"Id":"a"},{"Id":"b"}]}`
		}
		return http.StatusOK, `{"value":[{"Id":"c"}]}`
	})

	records, err := adapter.SearchEvents(context.Background(), "Status eq 2", 2)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Len(t, *seen, 2)
}

func TestSearchEventsErrors(t *testing.T) {
	t.Run("forbidden", func(t *testing.T) {
		adapter, _ := newSearchServer(t, func(searchRequest) (int, string) { return http.StatusForbidden, `{}` })
		_, err := adapter.SearchEvents(context.Background(), "x", 5)
		assert.Equal(t, apperr.CodeAuthenticationFailed, apperr.CodeOf(err))
	})

	t.Run("server error", func(t *testing.T) {
		adapter, _ := newSearchServer(t, func(searchRequest) (int, string) { return http.StatusServiceUnavailable, `busy` })
		_, err := adapter.SearchEvents(context.Background(), "x", 5)
		assert.Equal(t, apperr.CodeExternalError, apperr.CodeOf(err))
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewAdapter(Config{}).SearchEvents(context.Background(), "x", 5)
		assert.Equal(t, apperr.CodeConfigError, apperr.CodeOf(err))
	})
}
