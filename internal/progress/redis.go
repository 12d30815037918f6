// SPDX-License-Identifier: MIT

// Package progress fans launch snapshots out to operators.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
)

// ErrNoSnapshot is returned by Latest when nothing was published yet.
var ErrNoSnapshot = errors.New("progress: no snapshot stored")

// RedisConfig holds Redis connection and key configuration.
type RedisConfig struct {
	Addr     string        // Redis server address (host:port)
	Password string        // Redis password (optional)
	DB       int           // Redis database number
	Prefix   string        // Key prefix, e.g. "opsdash"
	TTL      time.Duration // Lifetime of stored snapshots
}

// RedisPublisher stores the latest snapshot of every run and publishes each
// snapshot on a pub/sub channel for live dashboards.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
	stats  struct {
		published atomic.Int64
		failed    atomic.Int64
	}
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(config RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	p := NewRedisPublisherWithClient(client, config.Prefix, config.TTL)
	p.logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to Redis progress store")
	return p, nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisPublisher {
	if prefix == "" {
		prefix = "opsdash"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: xglog.WithComponent("progress"),
	}
}

// StateKey is where the latest snapshot of runID is stored.
func (p *RedisPublisher) StateKey(runID string) string {
	return fmt.Sprintf("%s:run:%s:state", p.prefix, runID)
}

// LatestKey always holds the most recent snapshot of any run.
func (p *RedisPublisher) LatestKey() string {
	return p.prefix + ":latest"
}

// Channel is the pub/sub channel snapshots are published on.
func (p *RedisPublisher) Channel() string {
	return p.prefix + ":progress"
}

// Publish stores and broadcasts one snapshot.
func (p *RedisPublisher) Publish(ctx context.Context, snap launch.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("progress: marshal snapshot: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if snap.RunID != "" {
			pipe.Set(ctx, p.StateKey(snap.RunID), data, p.ttl)
		}
		pipe.Set(ctx, p.LatestKey(), data, p.ttl)
		pipe.Publish(ctx, p.Channel(), data)
		return nil
	})
	if err != nil {
		p.stats.failed.Add(1)
		return fmt.Errorf("progress: publish: %w", err)
	}
	p.stats.published.Add(1)
	return nil
}

// Run publishes every snapshot received from obs until its channel is closed
// or ctx is done. Publish failures are logged and do not stop the loop.
func (p *RedisPublisher) Run(ctx context.Context, obs *launch.ChannelObserver) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-obs.C():
			if !ok {
				return nil
			}
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := p.Publish(pubCtx, snap)
			cancel()
			if err != nil {
				p.logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "progress.publish_failed").
					Str(xglog.FieldRunID, snap.RunID).
					Msg("redis publish failed")
			}
		}
	}
}

// Latest returns the stored snapshot of runID, or of the most recent run when
// runID is empty.
func (p *RedisPublisher) Latest(ctx context.Context, runID string) (launch.Snapshot, error) {
	key := p.LatestKey()
	if runID != "" {
		key = p.StateKey(runID)
	}

	val, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return launch.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return launch.Snapshot{}, fmt.Errorf("progress: get %s: %w", key, err)
	}

	var snap launch.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return launch.Snapshot{}, fmt.Errorf("progress: decode %s: %w", key, err)
	}
	return snap, nil
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Published returns the number of successful and failed publishes.
func (p *RedisPublisher) Published() (ok, failed int64) {
	return p.stats.published.Load(), p.stats.failed.Load()
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
