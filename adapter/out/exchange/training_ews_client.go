// Package exchange talks to on-premises Exchange through EWS SOAP calls.
package exchange

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Azure/go-ntlmssp"

	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/httputil"
	"training_server/pkg/resilience"
)

const (
	defaultServerVersion = "Exchange2013_SP1"
	maxResponseBytes     = 1 << 20

	AuthNTLM  = "ntlm"
	AuthBasic = "basic"
)

// Config holds the service account used to impersonate organizer mailboxes.
type Config struct {
	URL           string
	Username      string
	Password      string
	AuthMode      string // ntlm (default) or basic
	ServerVersion string
	HTTPClient    *http.Client
}

// Client implements out.OnPremCalendarPort.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *resilience.CircuitBreaker
	now        func() time.Time
}

// NewClient never fails; configuration problems surface from Connect so that
// a misconfigured deployment degrades per operation.
func NewClient(cfg Config) *Client {
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = defaultServerVersion
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthNTLM
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := httputil.ExchangeClientConfig()
		var transport http.RoundTripper = httputil.NewTransport(clientCfg)
		if cfg.AuthMode == AuthNTLM {
			transport = ntlmssp.Negotiator{RoundTripper: transport}
		}
		httpClient = &http.Client{Transport: transport, Timeout: clientCfg.ResponseTimeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cb:         resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("ews")),
		now:        time.Now,
	}
}

// Connect opens a session impersonating mailbox (a user principal name).
func (c *Client) Connect(_ context.Context, mailbox string) (out.OnPremSession, error) {
	if c.cfg.URL == "" {
		return nil, apperr.ConfigError("EWS endpoint is not configured")
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, apperr.ConfigError("EWS endpoint is not a valid http(s) URL").WithDetail("url", c.cfg.URL)
	}
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return nil, apperr.ConfigError("EWS service account credentials are not configured")
	}
	if mailbox == "" {
		return nil, apperr.MissingField("mailbox")
	}
	return &session{client: c, mailbox: mailbox}, nil
}

// call sends one SOAP request on behalf of mailbox and returns its response messages.
func (c *Client) call(ctx context.Context, mailbox, operation string, content any) ([]responseMessage, error) {
	env := envelope{
		XmlnsSoap: nsSoap,
		XmlnsT:    nsTypes,
		XmlnsM:    nsMessages,
		Header: header{
			Version:       serverVersion{Version: c.cfg.ServerVersion},
			Impersonation: impersonation{ConnectingSID: connectingSID{PrincipalName: mailbox}},
		},
		Body: body{Content: content},
	}

	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, apperr.MappingPrecondition(fmt.Sprintf("failed to encode %s request: %v", operation, err))
	}

	var messages []responseMessage
	err = c.cb.Execute(func() error {
		var callErr error
		messages, callErr = c.post(ctx, operation, append([]byte(xml.Header), payload...))
		return asEWSError(operation, callErr)
	})
	if err != nil {
		return nil, asEWSError(operation, err)
	}
	return messages, nil
}

func (c *Client) post(ctx context.Context, operation string, payload []byte) ([]responseMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.AuthenticationFailed("ews "+operation, fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed responseEnvelope
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("status %d, unmarshaling XML: %w", resp.StatusCode, err)
	}
	if f := parsed.Body.Fault; f != nil {
		return nil, fmt.Errorf("soap fault %s: %s", f.Code, f.String)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	messages := parsed.Body.Response.Messages.Items
	if len(messages) == 0 {
		return nil, errors.New("response carried no response messages")
	}
	for _, m := range messages {
		if m.ResponseClass != responseClassSuccess && m.ResponseClass != responseClassWarning {
			itemErr := fmt.Errorf("%s: %s", m.ResponseCode, m.MessageText)
			if serverSideResponseCodes[m.ResponseCode] {
				return nil, apperr.BackendTransportFailed("ews", operation, itemErr).WithDetail("response_code", m.ResponseCode)
			}
			return nil, apperr.BackendRejected("ews", operation, itemErr).WithDetail("response_code", m.ResponseCode)
		}
	}
	return messages, nil
}

// serverSideResponseCodes are item-level codes that describe the server's
// health rather than the request.
var serverSideResponseCodes = map[string]bool{
	"ErrorServerBusy":                   true,
	"ErrorInternalServerError":          true,
	"ErrorInternalServerTransientError": true,
	"ErrorTimeoutExpired":               true,
	"ErrorMailboxStoreUnavailable":      true,
	"ErrorConnectionFailed":             true,
}

func asEWSError(operation string, err error) error {
	if err == nil || apperr.IsAppError(err) {
		return err
	}
	if resilience.IsOpen(err) {
		return apperr.BackendTransportFailed("ews", operation, err).WithDetail("circuit_open", true)
	}
	return apperr.BackendTransportFailed("ews", operation, err)
}

var _ out.OnPremCalendarPort = (*Client)(nil)
