package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/use-agent/upnext/models"
)

// KeyPrefix namespaces result keys in a shared Redis.
const KeyPrefix = "upnext:recs:"

// opTimeout bounds a single Redis round trip.
const opTimeout = 2 * time.Second

// Redis is a Store backed by a Redis server. Values are JSON arrays of items
// and expire server-side after the TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the server described by rawURL
// (redis://[user:pass@]host:port/db) and verifies it with a PING.
func NewRedis(ctx context.Context, rawURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	slog.Info("connected to redis cache", "addr", opts.Addr, "db", opts.DB)
	return NewRedisFromClient(client, ttl), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func key(videoID string) string {
	return KeyPrefix + videoID
}

// Get returns the items stored for videoID. Any backend or decode error is
// logged and reported as a miss.
func (r *Redis) Get(ctx context.Context, videoID string) ([]models.Item, bool) {
	items, _, ok := r.GetAged(ctx, videoID)
	return items, ok
}

// GetAged is Get that also reports the entry's age, derived from the
// remaining server-side lifetime. A key without an expiry reports age 0.
func (r *Redis) GetAged(ctx context.Context, videoID string) ([]models.Item, time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key(videoID))
	ttlCmd := pipe.PTTL(ctx, key(videoID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("redis get failed", "video_id", videoID, "error", err)
		return nil, 0, false
	}

	val, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, false
	}
	if err != nil {
		slog.Warn("redis get failed", "video_id", videoID, "error", err)
		return nil, 0, false
	}

	var items []models.Item
	if err := json.Unmarshal(val, &items); err != nil {
		slog.Warn("redis value decode failed", "video_id", videoID, "error", err)
		return nil, 0, false
	}
	if items == nil {
		items = []models.Item{}
	}

	var age time.Duration
	if remaining := ttlCmd.Val(); remaining > 0 && remaining < r.ttl {
		age = r.ttl - remaining
	}
	return items, age, true
}

// Put stores items for videoID with the store's TTL.
func (r *Redis) Put(ctx context.Context, videoID string, items []models.Item) {
	r.PutAged(ctx, videoID, items, 0)
}

// PutAged stores items with whatever is left of the TTL after age. An entry
// already past the TTL is not stored.
func (r *Redis) PutAged(ctx context.Context, videoID string, items []models.Item, age time.Duration) {
	ttl := r.ttl - max(age, 0)
	if ttl <= 0 {
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		slog.Warn("redis value encode failed", "video_id", videoID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.client.Set(ctx, key(videoID), data, ttl).Err(); err != nil {
		slog.Warn("redis set failed", "video_id", videoID, "error", err)
	}
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}
