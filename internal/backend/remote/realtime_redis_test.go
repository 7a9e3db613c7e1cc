package remote

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/domain"
)

// publish feeds an envelope into topic the way the backend's realtime relay does.
func (t *redisTransport) publish(ctx context.Context, topic string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, topic, data).Err()
}

// Runs only against a real server: CHATSYNC_TEST_REDIS_URL=redis://localhost:6379/0
func TestRedisTransport(t *testing.T) {
	rawURL := os.Getenv("CHATSYNC_TEST_REDIS_URL")
	if rawURL == "" {
		t.Skip("CHATSYNC_TEST_REDIS_URL not set")
	}
	c, err := New(config.Remote{Endpoint: "http://127.0.0.1:1", Key: "k", RealtimeEndpoint: rawURL})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.Message, 1)
	sub, err := c.OnMessageInsert(ctx, "c1", func(m domain.Message) { got <- m })
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sub.Close() }()

	rt := c.rt.(*redisTransport)
	if err := rt.publish(ctx, chatTopic("c1"), envelope{Type: eventInsert, Record: []byte(`{"id":"m1","content":"hi"}`)}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-got:
		if m.ID != "m1" || m.ChatID != "c1" {
			t.Errorf("message = %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for redis push")
	}
}

func TestRedisTransportSelected(t *testing.T) {
	c, err := New(config.Remote{Endpoint: "https://x.example.com", Key: "k", RealtimeEndpoint: "redis://localhost:6379/0"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	if _, ok := c.rt.(*redisTransport); !ok {
		t.Errorf("transport = %T, want *redisTransport", c.rt)
	}
}
