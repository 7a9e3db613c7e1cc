package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
)

// wsTransport opens one websocket per topic.
type wsTransport struct {
	c       *Client
	baseURL string

	mu       sync.Mutex
	channels map[*wsChannel]struct{}
}

func newWSTransport(c *Client, baseURL string) *wsTransport {
	return &wsTransport{c: c, baseURL: baseURL, channels: make(map[*wsChannel]struct{})}
}

func (t *wsTransport) topicURL(topic string) (string, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("topic", topic)
	q.Set("apikey", t.c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *wsTransport) dial(ctx context.Context, topic string) (*websocket.Conn, error) {
	u, err := t.topicURL(topic)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.c.accessToken())
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient: t.c.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (t *wsTransport) subscribe(ctx context.Context, topic string, fn func(envelope)) (backend.Subscription, error) {
	conn, err := t.dial(ctx, topic)
	if err != nil {
		return nil, apperr.New(apperr.Transient, "open channel "+topic, err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	ch := &wsChannel{
		t:      t,
		topic:  topic,
		fn:     fn,
		cancel: cancel,
		done:   make(chan struct{}),
		conn:   conn,
	}
	t.mu.Lock()
	t.channels[ch] = struct{}{}
	t.mu.Unlock()

	go ch.run(runCtx)
	return ch, nil
}

func (t *wsTransport) close() error {
	t.mu.Lock()
	chans := make([]*wsChannel, 0, len(t.channels))
	for ch := range t.channels {
		chans = append(chans, ch)
	}
	t.mu.Unlock()
	for _, ch := range chans {
		_ = ch.Close()
	}
	return nil
}

// wsChannel is one topic's connection, reconnected in the background until closed.
type wsChannel struct {
	t      *wsTransport
	topic  string
	fn     func(envelope)
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (ch *wsChannel) Close() error {
	ch.once.Do(func() {
		ch.cancel()
		ch.mu.Lock()
		conn := ch.conn
		ch.conn = nil
		ch.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "unsubscribe")
		}
		<-ch.done
		ch.t.mu.Lock()
		delete(ch.t.channels, ch)
		ch.t.mu.Unlock()
	})
	return nil
}

func (ch *wsChannel) run(ctx context.Context) {
	defer close(ch.done)
	logger := ch.t.c.logger.With(zap.String("topic", ch.topic))
	recon := newReconnector(ch.t.c.rtConfig)
	recon.markConnected()

	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()

	for {
		err := ch.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("push channel dropped", zap.Error(err))

		conn = nil
		for conn == nil {
			if !recon.shouldReconnect() {
				logger.Error("push channel gave up reconnecting")
				return
			}
			delay := recon.nextDelay()
			logger.Debug("push channel reconnecting", zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			c, err := ch.t.dial(ctx, ch.topic)
			if err != nil {
				logger.Debug("push channel redial failed", zap.Error(err))
				continue
			}
			conn = c
		}
		recon.markConnected()
		ch.mu.Lock()
		if ctx.Err() != nil {
			ch.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "unsubscribe")
			return
		}
		ch.conn = conn
		ch.mu.Unlock()
		logger.Info("push channel reconnected")
	}
}

// serve reads envelopes until the connection fails.
func (ch *wsChannel) serve(ctx context.Context, conn *websocket.Conn) error {
	hbCtx, stop := context.WithCancel(ctx)
	defer stop()
	go ch.heartbeat(hbCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Topic != "" && env.Topic != ch.topic {
			continue
		}
		ch.fn(env)
	}
}

func (ch *wsChannel) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(ch.t.c.rtConfig.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				_ = conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}
