package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/statesync/internal/token"
)

// Client provides access to the resync REST endpoint.
type Client struct {
	baseURL    string
	tokens     token.Provider
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	// onUnauthorized fires once per 401, before the error is returned.
	onUnauthorized func()
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a resync client. tokens may be nil for endpoints that
// do not require a credential.
func NewClient(baseURL string, tokens token.Provider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUnauthorizedHandler sets the callback fired when the endpoint
// returns 401. Typically wired to the token store's Invalidate.
func WithUnauthorizedHandler(fn func()) ClientOption {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}
