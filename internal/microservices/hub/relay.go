package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RelayChannel is the Redis pub/sub channel shared by all instances.
const RelayChannel = "rcon:broadcast"

// envelope is the relay wire format.
type envelope struct {
	Origin  string          `json:"origin"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	envelopeLog    = "log"
	envelopePlayer = "player"
	envelopeStatus = "status"
)

func encodeEnvelope(origin string, event Event) ([]byte, error) {
	var typ string
	switch event.(type) {
	case LogLine:
		typ = envelopeLog
	case PlayerEvent:
		typ = envelopePlayer
	case StatusSnapshot:
		typ = envelopeStatus
	default:
		return nil, fmt.Errorf("relay: unsupported event %T", event)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("relay: encode payload: %w", err)
	}
	return json.Marshal(envelope{Origin: origin, Type: typ, Payload: payload})
}

func decodeEnvelope(data []byte) (string, Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("relay: decode envelope: %w", err)
	}

	var (
		event Event
		err   error
	)
	switch env.Type {
	case envelopeLog:
		var e LogLine
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case envelopePlayer:
		var e PlayerEvent
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case envelopeStatus:
		var e StatusSnapshot
		err = json.Unmarshal(env.Payload, &e)
		event = e
	default:
		return "", nil, fmt.Errorf("relay: unknown event type %q", env.Type)
	}
	if err != nil {
		return "", nil, fmt.Errorf("relay: decode %s payload: %w", env.Type, err)
	}
	return env.Origin, event, nil
}

// RedisRelay shares broadcasts between server instances over Redis
// pub/sub. Each process tags what it sends with its own instance ID and
// ignores its own messages on the way back.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	origin  string
	channel string
	logger  *slog.Logger
}

// NewRedisRelay connects to redisURL (redis:// or rediss://) and verifies
// the connection.
func NewRedisRelay(redisURL string, h *Hub, logger *slog.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{
		client:  rdb,
		hub:     h,
		origin:  uuid.NewString(),
		channel: RelayChannel,
		logger:  logger,
	}, nil
}

// Origin is this instance's relay ID.
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Forward publishes the event for the other instances.
func (r *RedisRelay) Forward(ctx context.Context, event Event) error {
	data, err := encodeEnvelope(r.origin, event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run subscribes to the relay channel and delivers foreign events to local
// sessions until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	r.logger.Info("broadcast_relay_started", "channel", r.channel, "origin", r.origin)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			origin, event, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("broadcast_relay_decode_failed", "error", err)
				continue
			}
			if origin == r.origin {
				continue
			}
			r.hub.Deliver(event)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
