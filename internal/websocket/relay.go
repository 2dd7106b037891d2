package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// relayEnvelope is what travels over Redis. Origin lets an instance ignore
// its own refreshes, which it has already broadcast locally.
type relayEnvelope struct {
	Origin string `json:"origin"`
	Type   string `json:"type"`
}

// RedisRelay shares refresh signals between server instances over a Redis
// pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *slog.Logger

	// pending holds at most one unsent refresh; refreshes carry no payload
	// so queued ones coalesce.
	pending chan struct{}
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
		pending: make(chan struct{}, 1),
	}
}

// Notify queues a refresh for Run to publish.
func (r *RedisRelay) Notify() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Publish announces a refresh to the other instances.
func (r *RedisRelay) Publish(ctx context.Context) error {
	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Type: TypeRefresh})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish refresh: %w", err)
	}
	return nil
}

// Run publishes queued refreshes and rebroadcasts refreshes from other
// instances to local clients until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	go r.publishLoop(ctx)

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

// publishLoop keeps running if the subscription fails, so other instances
// still hear this one's refreshes.
func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
			if err := r.Publish(ctx); err != nil {
				r.logger.Warn("relay refresh", "error", err)
			}
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn("relay: bad message", "error", err)
		return
	}
	if env.Origin == r.origin || env.Type != TypeRefresh {
		return
	}
	r.hub.Broadcast(RefreshMessage())
}
