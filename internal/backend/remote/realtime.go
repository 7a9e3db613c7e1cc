package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"time"

	"github.com/matheus3301/chatsync/internal/backend"
)

// Push event types.
const (
	eventInsert = "insert"
	eventUpdate = "update"
	eventDelete = "delete"
)

// envelope is the wire format of every push event, on either transport.
type envelope struct {
	Type   string          `json:"type"`
	Topic  string          `json:"topic"`
	Record json.RawMessage `json:"record"`
}

// transport opens one push channel per topic.
type transport interface {
	// subscribe opens the channel before returning; fn runs on the channel's goroutine.
	subscribe(ctx context.Context, topic string, fn func(envelope)) (backend.Subscription, error)
	close() error
}

func newTransport(c *Client, rawURL string) (transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime endpoint %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return newWSTransport(c, rawURL), nil
	case "redis", "rediss":
		return newRedisTransport(c, rawURL)
	default:
		return nil, fmt.Errorf("unsupported realtime scheme %q", u.Scheme)
	}
}

// RealtimeConfig tunes push channels.
type RealtimeConfig struct {
	// MaxReconnectAttempts of 0 retries forever.
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HeartbeatInterval    time.Duration
}

func (c *RealtimeConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
}

// reconnector computes exponential backoff with jitter. The attempt counter resets once a
// connection has stayed up for a minute.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(cfg RealtimeConfig) *reconnector {
	return &reconnector{
		baseDelay:   cfg.ReconnectBaseDelay,
		maxDelay:    cfg.ReconnectMaxDelay,
		maxAttempts: cfg.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}
