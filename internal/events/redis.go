package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "hostchat:user:"

func channelFor(userID int64) string {
	return fmt.Sprintf("%s%d", channelPrefix, userID)
}

// RedisBus fans events out through Redis pub/sub, so a client waiting on one
// server instance hears about a message written through another.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBus connects to redisURL ("redis://host:6379/0") and pings it.
func NewRedisBus(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisBus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis event bus connected", zap.String("addr", opt.Addr))
	return &RedisBus{client: client, logger: logger}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(ev.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe waits for the SUBSCRIBE confirmation before returning, so an
// event published right after Subscribe returns is not missed.
func (b *RedisBus) Subscribe(ctx context.Context, userID int64) (<-chan Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, channelFor(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("drop malformed event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("close subscription", zap.Error(err))
			}
		})
	}
	return out, cancel, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
