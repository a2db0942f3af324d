// Package search queries the training event index on Azure Cognitive Search.
package search

import (
	"bytes"
	"context"
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
)

const (
	defaultAPIVersion = "2023-11-01"
	maxSkip           = 100000
	selectFields      = "Id,Name,StartDate,Status,Type,RegisteredAttendees,RegisteredAttendeesCount"
)

type Config struct {
	Endpoint   string // https://<service>.search.windows.net
	Index      string
	APIKey     string
	APIVersion string
	HTTPClient *http.Client
}

// Adapter implements out.SearchIndexPort.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	cb         *resilience.CircuitBreaker
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = httputil.SearchClient()
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: client,
		cb:         resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("search")),
	}
}

type searchRequest struct {
	Search  string `json:"search"`
	Filter  string `json:"filter"`
	Select  string `json:"select"`
	OrderBy string `json:"orderby"`
	Top     int    `json:"top"`
	Skip    int    `json:"skip,omitempty"`
}

type searchResponse struct {
	Value []eventDocument `json:"value"`
}

// eventDocument is the index schema; field names match the filter expressions.
type eventDocument struct {
	ID                       string    `json:"Id"`
	Name                     string    `json:"Name"`
	StartDate                time.Time `json:"StartDate"`
	Status                   int       `json:"Status"`
	Type                     int       `json:"Type"`
	RegisteredAttendees      string    `json:"RegisteredAttendees"`
	RegisteredAttendeesCount int       `json:"RegisteredAttendeesCount"`
}

func (d eventDocument) toRecord() *domain.EventRecord {
	return &domain.EventRecord{
		ID:                       d.ID,
		Name:                     d.Name,
		StartDate:                d.StartDate,
		Status:                   domain.EventStatus(d.Status),
		Type:                     domain.EventType(d.Type),
		RegisteredAttendees:      d.RegisteredAttendees,
		RegisteredAttendeesCount: d.RegisteredAttendeesCount,
	}
}

// SearchEvents returns every document matching filter, requesting pageSize documents per call.
func (a *Adapter) SearchEvents(ctx context.Context, filter string, pageSize int) ([]*domain.EventRecord, error) {
	if a.cfg.Endpoint == "" || a.cfg.Index == "" {
		return nil, apperr.ConfigError("search endpoint and index are required")
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	var records []*domain.EventRecord
	for skip := 0; skip <= maxSkip; skip += pageSize {
		var page searchResponse
		err := a.cb.Execute(func() error {
			return a.query(ctx, searchRequest{
				Search:  "*",
				Filter:  filter,
				Select:  selectFields,
				OrderBy: "StartDate asc",
				Top:     pageSize,
				Skip:    skip,
			}, &page)
		})
		if err != nil {
			if apperr.IsAppError(err) {
				return nil, err
			}
			return nil, apperr.ExternalError("search", err)
		}

		for _, doc := range page.Value {
			records = append(records, doc.toRecord())
		}
		if len(page.Value) < pageSize {
			break
		}
	}
	return records, nil
}

func (a *Adapter) query(ctx context.Context, body searchRequest, dest *searchResponse) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		a.cfg.Endpoint, url.PathEscape(a.cfg.Index), url.QueryEscape(a.cfg.APIVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperr.AuthenticationFailed("search api-key", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search returned status %d: %s", resp.StatusCode, excerpt)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

var _ out.SearchIndexPort = (*Adapter)(nil)
