package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisStatsKey = "gigalert:feedstats"

// RedisSink publishes the snapshot as a JSON value with a TTL, so a
// stalled worker's stats age out instead of reporting stale success.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink parses redisURL, verifies connectivity, and returns the sink.
func NewRedisSink(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisSink{client: client, ttl: ttl}, nil
}

func (r *RedisSink) Publish(ctx context.Context, s *CycleStats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal cycle stats: %w", err)
	}
	if err := r.client.Set(ctx, redisStatsKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("publish cycle stats to redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (r *RedisSink) Close() error {
	return r.client.Close()
}
