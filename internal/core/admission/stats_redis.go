package admission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStats writes decision counters to Redis hashes:
//
//	{prefix}:total                 allowed|denied
//	{prefix}:minute:{YYYYMMDDhhmm} allowed|denied (expires after ttl)
//	{prefix}:endpoint              {endpoint}:allowed|{endpoint}:denied
//
// It only aggregates decisions; admission itself stays process-local.
type RedisStats struct {
	rdb *redis.Client

	prefix       string
	ttl          time.Duration
	trackClients bool
}

// RedisStatsOption configures a RedisStats.
type RedisStatsOption func(*RedisStats)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithRedisTTL sets the expiry of per-minute and per-client keys.
func WithRedisTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStats) { s.ttl = d }
}

// WithRedisTrackClients enables per-client hashes. Beware of key cardinality.
func WithRedisTrackClients(track bool) RedisStatsOption {
	return func(s *RedisStats) { s.trackClients = track }
}

// NewRedisStats creates a recorder backed by rdb.
func NewRedisStats(rdb *redis.Client, opts ...RedisStatsOption) *RedisStats {
	s := &RedisStats{
		rdb:    rdb,
		prefix: "iplens:admission",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements StatsRecorder.
func (s *RedisStats) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if endpoint := strings.TrimSpace(ev.Endpoint); endpoint != "" {
		pipe.HIncrBy(ctx, s.prefix+":endpoint", endpoint+":"+field, 1)
	}

	if s.trackClients {
		if client := strings.TrimSpace(ev.Client); client != "" {
			clientKey := s.prefix + ":client:" + client
			pipe.HIncrBy(ctx, clientKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, clientKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Ping verifies the Redis connection.
func (s *RedisStats) Ping(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Ping(ctx).Err()
}

// Close releases the Redis client.
func (s *RedisStats) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
