package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
)

// redisTransport maps each topic to a redis pub/sub channel of the same name.
type redisTransport struct {
	c      *Client
	client *redis.Client
}

func newRedisTransport(c *Client, rawURL string) (*redisTransport, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	return &redisTransport{c: c, client: redis.NewClient(opt)}, nil
}

func (t *redisTransport) subscribe(ctx context.Context, topic string, fn func(envelope)) (backend.Subscription, error) {
	ps := t.client.Subscribe(ctx, topic)
	// Receive blocks until the server confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, apperr.New(apperr.Transient, "open channel "+topic, err)
	}

	done := make(chan struct{})
	msgs := ps.Channel()
	go func() {
		defer close(done)
		for msg := range msgs {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				t.c.logger.Debug("drop malformed push payload", zap.String("topic", topic), zap.Error(err))
				continue
			}
			fn(env)
		}
	}()

	var once sync.Once
	return backend.SubscriptionFunc(func() error {
		var err error
		once.Do(func() {
			err = ps.Close()
			<-done
		})
		return err
	}), nil
}

func (t *redisTransport) close() error {
	return t.client.Close()
}
