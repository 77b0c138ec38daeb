package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisPrefix = "planpact:"

// RedisBroadcaster publishes through Redis pub/sub so that every node's
// hub receives the message.
type RedisBroadcaster struct {
	rdb *redis.Client
	log *logrus.Entry
}

func NewRedisBroadcaster(redisURL string, log *logrus.Logger) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisBroadcaster{
		rdb: redis.NewClient(opts),
		log: log.WithField("component", "push-redis"),
	}, nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.rdb.Publish(ctx, redisPrefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Relay forwards every published message into hub until ctx is done.
// ready, when non-nil, is closed once the subscription is active.
func (b *RedisBroadcaster) Relay(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	sub := b.rdb.PSubscribe(ctx, redisPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.WithError(err).WithField("channel", m.Channel).Error("Invalid push payload")
				continue
			}
			_ = hub.Publish(ctx, strings.TrimPrefix(m.Channel, redisPrefix), msg)
		}
	}
}

func (b *RedisBroadcaster) Close() error {
	return b.rdb.Close()
}
