package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/httputil"
	"training_server/pkg/resilience"

	"golang.org/x/oauth2"
)

const (
	msGraphBaseURL = "https://graph.microsoft.com/v1.0"
	msGraphBetaURL = "https://graph.microsoft.com/beta"

	preferUTC           = `outlook.timezone="UTC"`
	joinContentPrefix   = "data:text/html,"
	maxErrorBodyExcerpt = 512
)

// GraphCalendarConfig configures the Graph calendar adapter.
type GraphCalendarConfig struct {
	BaseURL    string
	BetaURL    string
	HTTPClient *http.Client
}

// GraphCalendarAdapter implements CloudCalendarPort over the Graph REST API.
type GraphCalendarAdapter struct {
	baseURL    string
	betaURL    string
	httpClient *http.Client
	cb         *resilience.CircuitBreaker
}

// NewGraphCalendarAdapter creates a new Graph calendar adapter.
func NewGraphCalendarAdapter(cfg GraphCalendarConfig) *GraphCalendarAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = msGraphBaseURL
	}
	if cfg.BetaURL == "" {
		cfg.BetaURL = msGraphBetaURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.GraphClient()
	}
	return &GraphCalendarAdapter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		betaURL:    strings.TrimRight(cfg.BetaURL, "/"),
		httpClient: cfg.HTTPClient,
		cb:         resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("graph-calendar")),
	}
}

// getClient creates an HTTP client that sends token on the pooled transport.
func (a *GraphCalendarAdapter) getClient(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

// =============================================================================
// Event Operations
// =============================================================================

// CreateEvent creates ev in the token owner's calendar.
func (a *GraphCalendarAdapter) CreateEvent(ctx context.Context, token *oauth2.Token, ev *domain.CalendarEvent) (*domain.CreatedEvent, error) {
	var created graphEvent
	err := a.cb.Execute(func() error {
		return asGraphError("create", a.do(ctx, token, "create", http.MethodPost, a.baseURL+"/me/events", toGraphEvent(ev), http.StatusCreated, &created))
	})
	if err != nil {
		return nil, asGraphError("create", err)
	}
	return &domain.CreatedEvent{ID: created.ID, WebURL: created.WebLink}, nil
}

// UpdateEvent patches eventID in userID's calendar.
func (a *GraphCalendarAdapter) UpdateEvent(ctx context.Context, token *oauth2.Token, userID, eventID string, ev *domain.CalendarEvent) (*domain.CreatedEvent, error) {
	endpoint := fmt.Sprintf("%s/users/%s/events/%s", a.baseURL, url.PathEscape(userID), url.PathEscape(eventID))

	var updated graphEvent
	err := a.cb.Execute(func() error {
		return asGraphError("update", a.do(ctx, token, "update", http.MethodPatch, endpoint, toGraphEvent(ev), http.StatusOK, &updated))
	})
	if err != nil {
		return nil, asGraphError("update", err)
	}
	return &domain.CreatedEvent{ID: updated.ID, WebURL: updated.WebLink}, nil
}

// CancelEvent cancels eventID in userID's calendar; Graph notifies attendees with comment.
func (a *GraphCalendarAdapter) CancelEvent(ctx context.Context, token *oauth2.Token, userID, eventID, comment string) error {
	endpoint := fmt.Sprintf("%s/users/%s/events/%s/cancel", a.baseURL, url.PathEscape(userID), url.PathEscape(eventID))

	err := a.cb.Execute(func() error {
		return asGraphError("cancel", a.do(ctx, token, "cancel", http.MethodPost, endpoint, map[string]string{"comment": comment}, http.StatusAccepted, nil))
	})
	return asGraphError("cancel", err)
}

// CreateOnlineMeeting provisions a Teams meeting and decodes its join information.
func (a *GraphCalendarAdapter) CreateOnlineMeeting(ctx context.Context, token *oauth2.Token, subject string, start, end time.Time) (*domain.OnlineMeeting, error) {
	body := map[string]string{
		"subject":       subject,
		"startDateTime": start.UTC().Format(domain.RoundTripLayout),
		"endDateTime":   end.UTC().Format(domain.RoundTripLayout),
	}

	var meeting graphOnlineMeeting
	err := a.cb.Execute(func() error {
		return asGraphError("create online meeting", a.do(ctx, token, "create online meeting", http.MethodPost, a.betaURL+"/me/onlineMeetings", body, http.StatusCreated, &meeting))
	})
	if err != nil {
		return nil, asGraphError("create online meeting", err)
	}

	content, err := DecodeJoinContent(meeting.JoinInformation.Content)
	if err != nil {
		return nil, apperr.BackendTransportFailed("graph", "decode join information", err)
	}

	return &domain.OnlineMeeting{
		ID:          meeting.ID,
		JoinURL:     meeting.JoinWebURL,
		JoinContent: content,
	}, nil
}

// DecodeJoinContent turns a "data:text/html,<url-encoded>" payload into HTML.
func DecodeJoinContent(raw string) (string, error) {
	return url.QueryUnescape(strings.TrimPrefix(raw, joinContentPrefix))
}

// do sends one JSON request and decodes the response into dest when non-nil.
func (a *GraphCalendarAdapter) do(ctx context.Context, token *oauth2.Token, operation, method, endpoint string, payload any, want int, dest any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return apperr.MappingPrecondition(fmt.Sprintf("failed to marshal %s payload: %v", operation, err))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", preferUTC)

	resp, err := a.getClient(ctx, token).Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyExcerpt))
		return &statusError{status: resp.StatusCode, body: string(bodyBytes)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("graph responded %d: %s", e.status, e.body)
}

func asGraphError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.IsAppError(err) {
		return err
	}
	if resilience.IsOpen(err) {
		return apperr.BackendTransportFailed("graph", operation, err).WithDetail("circuit_open", true)
	}
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusUnauthorized || se.status == http.StatusForbidden:
			return apperr.AuthenticationFailed("graph "+operation, err).WithDetail("status", se.status)
		case se.status == http.StatusRequestTimeout || se.status == http.StatusTooManyRequests:
			return apperr.BackendTransportFailed("graph", operation, err).WithDetail("status", se.status)
		case se.status >= 400 && se.status < 500:
			return apperr.BackendRejected("graph", operation, err).WithDetail("status", se.status)
		}
		return apperr.BackendTransportFailed("graph", operation, err).WithDetail("status", se.status)
	}
	return apperr.BackendTransportFailed("graph", operation, err)
}

// =============================================================================
// Wire Types
// =============================================================================

type graphEvent struct {
	ID      string `json:"id"`
	WebLink string `json:"webLink"`
}

type graphOnlineMeeting struct {
	ID              string `json:"id"`
	JoinWebURL      string `json:"joinWebUrl"`
	JoinInformation struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
	} `json:"joinInformation"`
}

func toGraphEvent(ev *domain.CalendarEvent) map[string]interface{} {
	result := map[string]interface{}{
		"subject": ev.Subject,
		"body": map[string]string{
			"contentType": "HTML",
			"content":     ev.Body,
		},
		"start": map[string]string{
			"dateTime": ev.Start.DateTime,
			"timeZone": ev.Start.TimeZone,
		},
		"end": map[string]string{
			"dateTime": ev.End.DateTime,
			"timeZone": ev.End.TimeZone,
		},
	}

	if ev.Location != "" {
		result["location"] = map[string]string{
			"displayName": ev.Location,
		}
	}

	if ev.IsOnlineMeeting {
		result["isOnlineMeeting"] = true
		result["onlineMeetingProvider"] = ev.OnlineMeetingProvider
	}
	if ev.OnlineMeetingURL != "" {
		result["onlineMeetingUrl"] = ev.OnlineMeetingURL
	}

	if ev.Recurrence != nil {
		result["recurrence"] = map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":     ev.Recurrence.Type,
				"interval": ev.Recurrence.Interval,
			},
			"range": map[string]string{
				"type":      "endDate",
				"startDate": ev.Recurrence.StartDate,
				"endDate":   ev.Recurrence.EndDate,
			},
		}
	}

	if ev.Attendees != nil {
		attendees := make([]map[string]interface{}, len(ev.Attendees))
		for i, att := range ev.Attendees {
			attendees[i] = map[string]interface{}{
				"type": string(att.Type),
				"emailAddress": map[string]string{
					"address": att.Email,
					"name":    att.Name,
				},
			}
		}
		result["attendees"] = attendees
	}

	return result
}

// Ensure interface compliance
var _ out.CloudCalendarPort = (*GraphCalendarAdapter)(nil)
