package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	// statsTimeout bounds a single stats write.
	statsTimeout = 2 * time.Second

	defaultStatsQueueSize = 1024

	// unmatchedRoute is the route of requests no pattern matches.
	unmatchedRoute = "unmatched"
)

// StatsEvent is one limiter decision. Path is the matched route pattern, so
// the set of paths is bounded by the routes registered.
type StatsEvent struct {
	Key     string
	Method  string
	Path    string
	Allowed bool
	At      time.Time
}

// StatsRecorder mirrors limiter decisions somewhere for inspection. It never
// influences the decisions themselves.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsCounters holds allowed and denied totals.
type StatsCounters struct {
	Allowed int64
	Denied  int64
}

func (c *StatsCounters) add(allowed bool) {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}

// MemoryStats keeps decision totals in process memory.
type MemoryStats struct {
	mu      sync.Mutex
	total   StatsCounters
	byRoute map[string]StatsCounters
}

var _ StatsRecorder = (*MemoryStats)(nil)

// NewMemoryStats creates an empty in-memory recorder.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{
		byRoute: make(map[string]StatsCounters, 16),
	}
}

// Record adds ev to the totals.
func (s *MemoryStats) Record(_ context.Context, ev StatsEvent) error {
	route := strings.TrimSpace(ev.Method + " " + ev.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byRoute[route]
	c.add(ev.Allowed)
	s.byRoute[route] = c

	return nil
}

// Total returns the totals over every route.
func (s *MemoryStats) Total() StatsCounters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}

// Route returns the totals for "METHOD /path".
func (s *MemoryStats) Route(route string) StatsCounters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byRoute[route]
}

// RedisStats mirrors decisions into Redis hashes: a cumulative total, one
// bucket per minute that expires after ttl, and per-route counters.
type RedisStats struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ StatsRecorder = (*RedisStats)(nil)

// NewRedisClient creates the Redis client for the stats mirror.
func NewRedisClient(cfg config.ThrottleStatsConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  statsTimeout,
		ReadTimeout:  statsTimeout,
		WriteTimeout: statsTimeout,
	})
}

// NewRedisStats creates a Redis recorder writing keys under prefix.
func NewRedisStats(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStats {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "throttle:stats"
	}

	return &RedisStats{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Keys returns the Redis keys ev is written to.
func (s *RedisStats) Keys(ev StatsEvent) (total, bucket, route string) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	return s.prefix + ":total",
		fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504")),
		s.prefix + ":route"
}

// Record writes ev in a single pipeline.
func (s *RedisStats) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	totalKey, bucketKey, routeKey := s.Keys(ev)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)
	pipe.HIncrBy(ctx, bucketKey, field, 1)

	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if route := strings.TrimSpace(ev.Method + " " + ev.Path); route != "" {
		pipe.HIncrBy(ctx, routeKey, route+":"+field, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording throttle stats: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (s *RedisStats) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}

	return s.rdb.Close()
}
