// Package httputil provides pooled HTTP clients for the calendar backends.
package httputil

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// ClientConfig holds HTTP client configuration.
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration

	DisableKeepAlives bool
	KeepAliveInterval time.Duration
	ForceHTTP2        bool
}

// DefaultClientConfig returns the baseline configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
		ForceHTTP2:          true,
	}
}

// GraphClientConfig returns configuration for Microsoft Graph.
// Graph throttles per tenant, so the pool stays small.
func GraphClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     45 * time.Second,
		KeepAliveInterval:   30 * time.Second,
		ForceHTTP2:          true,
	}
}

// ExchangeClientConfig returns configuration for on-premises EWS.
// NTLM authenticates the connection, so HTTP/2 is disabled and keep-alive must stay on.
func ExchangeClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     60 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     60 * time.Second,
		KeepAliveInterval:   30 * time.Second,
		ForceHTTP2:          false,
	}
}

// SearchClientConfig returns configuration for the search index.
func SearchClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     60 * time.Second,
		DialTimeout:         5 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
		ForceHTTP2:          true,
	}
}

// NewTransport builds a pooled transport from cfg.
func NewTransport(cfg *ClientConfig) *http.Transport {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAliveInterval,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		ForceAttemptHTTP2:     cfg.ForceHTTP2,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}
}

// NewOptimizedClient creates an HTTP client with connection pooling.
func NewOptimizedClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	return &http.Client{
		Transport: NewTransport(cfg),
		Timeout:   cfg.ResponseTimeout,
	}
}

var (
	graphOnce    sync.Once
	graphClient  *http.Client
	searchOnce   sync.Once
	searchClient *http.Client
)

// GraphClient returns the shared client for Microsoft Graph.
func GraphClient() *http.Client {
	graphOnce.Do(func() { graphClient = NewOptimizedClient(GraphClientConfig()) })
	return graphClient
}

// SearchClient returns the shared client for the search index.
func SearchClient() *http.Client {
	searchOnce.Do(func() { searchClient = NewOptimizedClient(SearchClientConfig()) })
	return searchClient
}
