// Package statebus mirrors player state into Redis: every structural change
// is published on a channel and the latest snapshot is kept under a key, so
// other processes can follow the player without a socket connection.
package statebus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
)

// DefaultChannel is both the pub/sub channel and the snapshot key.
const DefaultChannel = "stellar:video:state"

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a Redis client and pings it with exponential backoff.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			log.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
			return client, nil
		}

		if attempt < attempts {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Redis ping failed, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
}

// Client is the subset of the Redis client the bus uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Bus publishes structural snapshots. Position-only changes are skipped.
type Bus struct {
	client  Client
	channel string
	pending chan player.Snapshot

	mu   sync.Mutex
	last *player.Snapshot
}

// New creates a bus publishing on channel (DefaultChannel when empty).
func New(client Client, channel string) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{
		client:  client,
		channel: channel,
		pending: make(chan player.Snapshot, 1),
	}
}

// Handle queues change for publishing when it alters the structure of the
// state. Only the most recent queued snapshot is kept.
func (b *Bus) Handle(change player.Change) {
	if change.Reason == player.ReasonPosition {
		return
	}

	b.mu.Lock()
	if b.last != nil && b.last.SameStructure(change.State) {
		b.mu.Unlock()
		return
	}
	snap := change.State
	b.last = &snap
	b.mu.Unlock()

	for {
		select {
		case b.pending <- snap:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

// Run publishes queued snapshots until ctx is done.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-b.pending:
			if err := b.Publish(ctx, snap); err != nil {
				log.Warn().Err(err).Msg("Publishing state to Redis failed")
			}
		}
	}
}

// Publish writes snap to the channel and the snapshot key.
func (b *Bus) Publish(ctx context.Context, snap player.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := b.client.Set(ctx, b.channel, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}
