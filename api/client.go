// Package api is the HTTP transport for the gateway's signaling protocol.
// It performs single GET/POST round-trips and decodes the JSON envelope;
// session and handle state live above it in pkg/session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/nevern02/janusgate/pkg/protocol"
)

const clientIDHeader = "X-Janus-Client"

const (
	// DefaultHTTPTimeout bounds ordinary request/response calls.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultPollTimeout bounds the long-poll GET. It must exceed the
	// gateway's own hold time (30s by default) or every poll times out.
	DefaultPollTimeout = 70 * time.Second
)

// clientIDInjector is an http.RoundTripper that tags every request with
// this client instance's ID, so gateway logs can tell instances apart.
type clientIDInjector struct {
	clientID string
	next     http.RoundTripper
}

func (t *clientIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(clientIDHeader, t.clientID)
	return t.next.RoundTrip(req)
}

// Client performs HTTP round-trips against a gateway base URL. It is
// stateless per call and safe for concurrent use by the foreground callers
// and the long-poll loop.
type Client struct {
	httpClient *http.Client
	pollClient *http.Client
	base       *url.URL
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPTimeout overrides the timeout for ordinary POST/GET calls.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithPollTimeout overrides the timeout for the long-poll GET.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) { c.pollClient.Timeout = d }
}

// NewClient creates a transport for the gateway rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url %q: unsupported scheme %q", baseURL, u.Scheme)
	}

	transport := &clientIDInjector{
		clientID: uuid.NewString(),
		next:     http.DefaultTransport,
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout, Transport: transport},
		pollClient: &http.Client{Timeout: DefaultPollTimeout, Transport: transport},
		base:       u,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// Post sends one request envelope and decodes the response envelope.
func (c *Client) Post(ctx context.Context, path string, msg *protocol.Request) (*protocol.Event, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal request envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(c.httpClient, req, "post", path)
	if err != nil {
		return nil, err
	}
	return decodeEvent(body)
}

// Get performs one long-poll iteration. An empty body means no event was
// pending before the gateway's hold time elapsed; both return values are
// nil in that case.
func (c *Client) Get(ctx context.Context, path string) (*protocol.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}

	body, err := c.do(c.pollClient, req, "get", path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return decodeEvent(body)
}

// Info probes the gateway's capabilities.
func (c *Client) Info(ctx context.Context) (*ServerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/info"), nil)
	if err != nil {
		return nil, fmt.Errorf("create info request: %w", err)
	}

	body, err := c.do(c.httpClient, req, "get", "/info")
	if err != nil {
		return nil, err
	}

	var info ServerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &protocol.DecodeError{Err: err}
	}
	return &info, nil
}

func (c *Client) do(hc *http.Client, req *http.Request, op, path string) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &protocol.TransportError{Op: op, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &protocol.TransportError{Op: op, Path: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &protocol.TransportError{Op: op, Path: path, Status: resp.StatusCode}
	}
	return body, nil
}

func decodeEvent(body []byte) (*protocol.Event, error) {
	var ev protocol.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, &protocol.DecodeError{Err: err}
	}
	return &ev, nil
}
