// Package remote is the live backend: a JSON-over-HTTP client for the authoritative store
// plus push channels (websocket or redis pub/sub) for change events.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/mode"
)

// Client implements backend.Backend against a remote store.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	rtURL    string
	rtConfig RealtimeConfig
	rt       transport

	mu           sync.Mutex
	session      *domain.Session
	listeners    map[int]backend.SessionListener
	nextListener int
}

var _ backend.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithRealtimeConfig tunes push-channel reconnects and heartbeats.
func WithRealtimeConfig(cfg RealtimeConfig) Option {
	return func(c *Client) { c.rtConfig = cfg }
}

// New creates a client for remote. The realtime transport is chosen from the realtime
// endpoint's scheme; no connection is made until the first subscription.
func New(remote config.Remote, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(remote.Endpoint), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, apperr.New(apperr.NotConfigured, "remote client", fmt.Errorf("invalid endpoint %q: %w", remote.Endpoint, err))
	}
	c := &Client{
		baseURL:    base,
		apiKey:     strings.TrimSpace(remote.Key),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
		now:        time.Now,
		listeners:  make(map[int]backend.SessionListener),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rtConfig.defaults()

	rtURL, err := realtimeURL(base, remote.RealtimeEndpoint)
	if err != nil {
		return nil, apperr.New(apperr.NotConfigured, "remote client", err)
	}
	c.rtURL = rtURL
	rt, err := newTransport(c, rtURL)
	if err != nil {
		return nil, apperr.New(apperr.NotConfigured, "remote client", err)
	}
	c.rt = rt
	return c, nil
}

func (c *Client) Mode() mode.Mode { return mode.Live }

// RealtimeURL returns the push endpoint in use.
func (c *Client) RealtimeURL() string { return c.rtURL }

// Close releases the realtime transport.
func (c *Client) Close() error {
	return c.rt.close()
}

// request describes one call to the store.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
	// authEndpoint widens the Auth classification to 400/403/422.
	authEndpoint bool
	// token overrides the bearer token (e.g. sign-out of a session being cleared).
	token string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", r.op, err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", r.op, err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	token := r.token
	if token == "" {
		token = c.accessToken()
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.New(apperr.Transient, r.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.New(apperr.Transient, r.op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return classify(r.op, resp.StatusCode, data, r.authEndpoint)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", r.op, err)
	}
	return nil
}

// accessToken returns the session token, or the api key for anonymous calls.
func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.apiKey
}

// errorBody covers the error shapes the store returns.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
}

func classify(op string, status int, body []byte, authEndpoint bool) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := firstNonEmpty(eb.ErrorDescription, eb.Message, eb.Msg, eb.Error, http.StatusText(status))
	err := fmt.Errorf("status %d: %s", status, msg)

	switch {
	case status == http.StatusUnauthorized:
		return apperr.New(apperr.Auth, op, err)
	case authEndpoint && (status == http.StatusBadRequest || status == http.StatusForbidden || status == http.StatusUnprocessableEntity):
		return apperr.New(apperr.Auth, op, err)
	case status == http.StatusForbidden:
		return apperr.New(apperr.Auth, op, err)
	case status == http.StatusNotFound:
		return apperr.New(apperr.NotFound, op, err)
	case status >= 500, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return apperr.New(apperr.Transient, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// realtimeURL derives the push endpoint from the primary endpoint unless override is set.
func realtimeURL(endpoint, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("cannot derive realtime endpoint from scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	return u.String(), nil
}

var errNoSession = errors.New("no session")
