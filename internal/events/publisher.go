package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Broadcaster delivers a wire frame to every locally connected subscriber.
type Broadcaster interface {
	Broadcast(frame []byte)
}

// Publisher fans calendar events out to subscribers. With a redis client it
// publishes through a shared channel so every instance's relay feeds its own
// local broadcaster; without one it broadcasts directly. Publishing is
// fire-and-forget: failures are logged and never reach the caller, so a
// broken fan-out can never roll back a committed mutation.
type Publisher struct {
	local   Broadcaster
	rdb     *redis.Client
	channel string
	logger  *zerolog.Logger
}

// NewPublisher creates a publisher. rdb may be nil for local-only fan-out.
func NewPublisher(local Broadcaster, rdb *redis.Client, channel string, logger *zerolog.Logger) *Publisher {
	return &Publisher{
		local:   local,
		rdb:     rdb,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends the event to all subscribers, best-effort.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	frame, err := event.Encode()
	if err != nil {
		p.logger.Error().Err(err).Str("type", event.Type).Msg("encode event")
		return
	}

	if p.rdb != nil {
		if err := p.rdb.Publish(ctx, p.channel, frame).Err(); err != nil {
			p.logger.Warn().Err(err).Str("type", event.Type).Msg("redis publish failed, falling back to local broadcast")
			p.local.Broadcast(frame)
		}
		return
	}

	p.local.Broadcast(frame)
}

// RunRelay subscribes to the redis channel and feeds received frames into
// the local broadcaster until the context ends. No-op without redis.
func (p *Publisher) RunRelay(ctx context.Context) {
	if p.rdb == nil {
		return
	}

	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	p.logger.Info().Str("channel", p.channel).Msg("event relay started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			p.local.Broadcast([]byte(msg.Payload))
		}
	}
}
