package redispub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gatekeeper/core/event"
	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

// DefaultChannel is the pub/sub channel events are published to.
const DefaultChannel = "gatekeeper:ratelimit:exceeded"

// ErrPublishFailed wraps errors returned by Redis.
var ErrPublishFailed = errors.New("redispub: publish failed")

// Publisher is the part of a Redis client the notifier needs.
// *redis.Client and *redis.ClusterClient satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Config holds notifier settings.
type Config struct {
	Enabled bool   `env:"NOTIFY_REDIS_ENABLED" envDefault:"false"`
	Channel string `env:"NOTIFY_REDIS_CHANNEL" envDefault:"gatekeeper:ratelimit:exceeded"`
}

// Notifier publishes LimitExceeded events as JSON event envelopes to a Redis
// pub/sub channel.
type Notifier struct {
	client  Publisher
	channel string
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) Option {
	return func(n *Notifier) {
		if channel != "" {
			n.channel = channel
		}
	}
}

// New creates a Notifier publishing through client.
func New(client Publisher, opts ...Option) *Notifier {
	n := &Notifier{client: client, channel: DefaultChannel}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify implements ratelimiter.Notifier. The envelope ID is the event ID so
// subscribers can deduplicate.
func (n *Notifier) Notify(ctx context.Context, evt ratelimiter.LimitExceeded) error {
	envelope := event.NewEvent(evt)
	if evt.ID != "" {
		envelope.ID = evt.ID
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("redispub: encode event: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Channel returns the channel events are published to.
func (n *Notifier) Channel() string {
	return n.channel
}
