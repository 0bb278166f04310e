//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/ocio-updater/internal/version"
)

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const dialKeepAlive = 30 * time.Second

// ErrBadHTTPStatus is returned when the server answers with a non-200 status.
var ErrBadHTTPStatus = errors.New("unexpected http status")

// Client performs GET requests with a fixed identifying header.
// Get bounds the whole exchange by the timeout. Stream bounds only
// connecting and waiting for the response headers, so a slow body can
// take as long as it keeps arriving.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	timeout      time.Duration
	userAgent    string
	headers      map[string]string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client, e.g. an httptest client.
// Its timeout is overwritten by the one passed to NewClient.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// NewClient creates a client whose requests time out after timeout.
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: new(http.Client),
		userAgent:  version.UserAgent(),
		headers:    make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Copy so a shared client passed through WithHTTPClient is not mutated.
	httpClient := *c.httpClient
	httpClient.Timeout = timeout

	streamClient := httpClient
	streamClient.Timeout = 0
	streamClient.Transport = streamTransport(httpClient.Transport, timeout)

	c.httpClient = &httpClient
	c.streamClient = &streamClient
	c.timeout = timeout

	return c
}

// streamTransport clones base with connect, handshake and header timeouts.
// A custom non-*http.Transport round tripper is used as is.
func streamTransport(base http.RoundTripper, timeout time.Duration) http.RoundTripper {
	var transport *http.Transport

	switch t := base.(type) {
	case nil:
		defaultTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return base
		}

		transport = defaultTransport.Clone()
	case *http.Transport:
		transport = t.Clone()
	default:
		return base
	}

	if transport.DialContext == nil {
		dialer := &net.Dialer{
			Timeout:   timeout,
			KeepAlive: dialKeepAlive,
		}

		transport.DialContext = dialer.DialContext
	}

	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	return transport
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get issues a GET request and returns the response when the status is 200.
// On any other status the body is closed and ErrBadHTTPStatus is returned.
// The caller must close the body of a successful response.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, c.httpClient, rawURL, headers)
}

// Stream is Get without a limit on reading the body. Callers that need one
// cancel ctx themselves.
func (c *Client) Stream(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, c.streamClient, rawURL, headers)
}

func (c *Client) do(
	ctx context.Context,
	httpClient *http.Client,
	rawURL string,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrBadHTTPStatus)
	}

	return response, nil
}
