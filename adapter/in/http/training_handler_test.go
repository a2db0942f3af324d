package http

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"training_server/core/domain"
	"training_server/infra/middleware"
	"training_server/pkg/apperr"
	"training_server/pkg/metrics"
)

const testSecret = "test-secret"

type fakeSyncService struct {
	actor     domain.Actor
	rec       *domain.EventRecord
	comment   string
	err       error
	cancelled bool
}

func (f *fakeSyncService) CreateEvent(_ context.Context, actor domain.Actor, rec *domain.EventRecord) (*domain.EventRecord, error) {
	f.actor, f.rec = actor, rec
	if f.err != nil {
		return nil, f.err
	}
	out := *rec
	out.GraphEventID = "AAMk-1"
	return &out, nil
}

func (f *fakeSyncService) UpdateEvent(_ context.Context, actor domain.Actor, rec *domain.EventRecord) (*domain.EventRecord, error) {
	f.actor, f.rec = actor, rec
	if f.err != nil {
		return nil, f.err
	}
	return rec, nil
}

func (f *fakeSyncService) CancelEvent(_ context.Context, actor domain.Actor, rec *domain.EventRecord, comment string) (bool, error) {
	f.actor, f.rec, f.comment = actor, rec, comment
	return f.cancelled, f.err
}

func (f *fakeSyncService) SyncHistory(_ context.Context, eventID string, limit int) ([]*domain.SyncLogEntry, error) {
	return []*domain.SyncLogEntry{{EventID: eventID, Operation: domain.SyncOperationCreate, Succeeded: true}}, nil
}

type fakeReminders struct {
	queued int
	err    error
	at     time.Time
}

func (f *fakeReminders) DayBeforeFilter(now time.Time) string {
	return "filter@" + now.UTC().Format(time.RFC3339)
}

func (f *fakeReminders) DispatchDayBeforeReminders(_ context.Context, now time.Time) (int, error) {
	f.at = now
	return f.queued, f.err
}

func newTestApp(sync *fakeSyncService, reminders *fakeReminders) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Use(middleware.RequestID())
	reg := metrics.NewLatencyRegistry(10)
	reg.Record("calendar.create.cloud", 25*time.Millisecond)
	NewHealthHandler(nil, nil).WithLatency(reg).Register(app)

	api := app.Group("/api/v1", middleware.JWTAuth(testSecret, ""))
	NewEventHandler(sync).Register(api)
	NewReminderHandler(reminders).Register(api)
	return app
}

func signToken(t *testing.T, subject, locale string) string {
	t.Helper()
	claims := middleware.ServiceClaims{
		Locale: locale,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(middleware.HeaderUserAssertion, "user-assertion")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	app := newTestApp(&fakeSyncService{}, &fakeReminders{})
	status, body := doJSON(t, app, fiber.MethodGet, "/health", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsExposesLatency(t *testing.T) {
	app := newTestApp(&fakeSyncService{}, &fakeReminders{})
	status, body := doJSON(t, app, fiber.MethodGet, "/metrics", nil, "")
	assert.Equal(t, fiber.StatusOK, status)

	latency, ok := body["latency"].(map[string]any)
	require.True(t, ok)
	create, ok := latency["calendar.create.cloud"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 25.0, create["max_ms"])
	assert.NotContains(t, body, "db_pool")
}

func TestCreateEventRequiresToken(t *testing.T) {
	app := newTestApp(&fakeSyncService{}, &fakeReminders{})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/events", domain.EventRecord{ID: "ev-1"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperr.CodeUnauthorized, body["error"].(map[string]any)["code"])

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/events", domain.EventRecord{ID: "ev-1"}, "not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateEventPassesActor(t *testing.T) {
	sync := &fakeSyncService{}
	app := newTestApp(sync, &fakeReminders{})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/events",
		domain.EventRecord{ID: "ev-1", Name: "Go basics", Type: domain.EventTypeTeams}, signToken(t, "user-1", "fr-FR"))

	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "AAMk-1", body["data"].(map[string]any)["graph_event_id"])
	assert.Equal(t, domain.Actor{UserID: "user-1", UserAssertion: "user-assertion", Locale: "fr-FR"}, sync.actor)
	assert.Equal(t, domain.EventTypeTeams, sync.rec.Type)
}

func TestCreateEventRendersTypedFailure(t *testing.T) {
	sync := &fakeSyncService{err: apperr.DirectoryLookupFailed("user-1", assert.AnError)}
	app := newTestApp(sync, &fakeReminders{})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/events", domain.EventRecord{ID: "ev-1"}, signToken(t, "user-1", ""))
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, apperr.CodeDirectoryLookupFailed, body["error"].(map[string]any)["code"])
}

func TestUpdateEventRejectsMismatchedIDs(t *testing.T) {
	app := newTestApp(&fakeSyncService{}, &fakeReminders{})
	status, _ := doJSON(t, app, fiber.MethodPut, "/api/v1/events/ev-2", domain.EventRecord{ID: "ev-1"}, signToken(t, "user-1", ""))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUpdateEventFillsIDFromPath(t *testing.T) {
	sync := &fakeSyncService{}
	app := newTestApp(sync, &fakeReminders{})
	status, _ := doJSON(t, app, fiber.MethodPut, "/api/v1/events/ev-2", domain.EventRecord{GraphEventID: "AAMk"}, signToken(t, "user-1", ""))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ev-2", sync.rec.ID)
}

func TestCancelEvent(t *testing.T) {
	sync := &fakeSyncService{cancelled: true}
	app := newTestApp(sync, &fakeReminders{})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/events/ev-1/cancel",
		map[string]any{"event": domain.EventRecord{GraphEventID: "AAMk"}, "comment": "Trainer unavailable"}, signToken(t, "user-1", ""))

	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["cancelled"])
	assert.Equal(t, "Trainer unavailable", sync.comment)
	assert.Equal(t, "ev-1", sync.rec.ID)

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/events/ev-1/cancel", map[string]any{"comment": "x"}, signToken(t, "user-1", ""))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSyncHistory(t *testing.T) {
	app := newTestApp(&fakeSyncService{}, &fakeReminders{})
	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/events/ev-9/sync-log", nil, signToken(t, "user-1", ""))
	require.Equal(t, fiber.StatusOK, status)
	entries := body["data"].(map[string]any)["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "ev-9", entries[0].(map[string]any)["event_id"])
}

func TestReminderFilterAndDispatch(t *testing.T) {
	reminders := &fakeReminders{queued: 3}
	app := newTestApp(&fakeSyncService{}, reminders)
	token := signToken(t, "scheduler", "")

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/reminders/filter?now=2026-03-09T10:00:00Z", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "filter@2026-03-09T10:00:00Z", body["data"].(map[string]any)["filter"])

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/reminders/filter?now=yesterday", nil, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/reminders/dispatch?now=2026-03-09T10:00:00Z", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(3), body["data"].(map[string]any)["queued"])
	assert.True(t, reminders.at.Equal(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)))
}

func TestReminderDispatchFailure(t *testing.T) {
	reminders := &fakeReminders{err: apperr.ExternalError("search", assert.AnError)}
	app := newTestApp(&fakeSyncService{}, reminders)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/reminders/dispatch", nil, signToken(t, "scheduler", ""))
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, apperr.CodeExternalError, body["error"].(map[string]any)["code"])
}

func TestActorFromContextReadsAuthLocals(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	var got domain.Actor
	app.Get("/actor", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, "user-7")
		c.Locals(middleware.LocalUserAssertion, "assertion-7")
		c.Locals(middleware.LocalLocale, "de-DE")
		actor, err := ActorFromContext(c)
		if err != nil {
			return err
		}
		got = actor
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/anonymous", func(c *fiber.Ctx) error {
		_, err := ActorFromContext(c)
		return err
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/actor", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, domain.Actor{UserID: "user-7", UserAssertion: "assertion-7", Locale: "de-DE"}, got)

	resp, err = app.Test(httptest.NewRequest("GET", "/anonymous", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
