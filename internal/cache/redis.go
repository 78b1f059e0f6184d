// Package cache keeps streak snapshots in redis and fans them out over pub/sub.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

const snapshotKeyPrefix = "streak:snapshot:"

// NewClient parses a redis URL and verifies the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

const generationKey = "streak:generation"

// putScript stores ARGV[1] under KEYS[1] unless the cached entry carries a
// newer generation than ARGV[2].
var putScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, decoded = pcall(cjson.decode, current)
  if ok and type(decoded) == 'table' and tonumber(decoded.generation) and tonumber(decoded.generation) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

var _ domain.SnapshotCache = (*RedisSnapshotCache)(nil)

// RedisSnapshotCache stores one snapshot per calendar day, shared by the api and
// the consumer. Entries expire when their snapshot stops being valid.
type RedisSnapshotCache struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSnapshotCache builds a cache over client.
func NewRedisSnapshotCache(client redis.UniversalClient) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, now: time.Now}
}

// Generation implements domain.SnapshotCache. It is zero until the first Bump.
func (c *RedisSnapshotCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Bump implements domain.SnapshotCache.
func (c *RedisSnapshotCache) Bump(ctx context.Context) (int64, error) {
	return c.client.Incr(ctx, generationKey).Result()
}

// Get returns nil without error on a miss.
func (c *RedisSnapshotCache) Get(ctx context.Context, day string) (*domain.CachedSnapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKeyPrefix+day).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entry domain.CachedSnapshot
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &entry, nil
}

// Put implements domain.SnapshotCache. The compare and the write run as one
// script, so concurrent writers in different processes cannot interleave.
func (c *RedisSnapshotCache) Put(ctx context.Context, day string, entry domain.CachedSnapshot) (bool, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	stored, err := putScript.Run(ctx, c.client,
		[]string{snapshotKeyPrefix + day},
		raw, entry.Generation, c.ttl(entry.ValidUntil).Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// ttl is the time left until validUntil, with a one second floor.
func (c *RedisSnapshotCache) ttl(validUntil time.Time) time.Duration {
	remaining := validUntil.Sub(c.now())
	if remaining < time.Second {
		return time.Second
	}
	return remaining
}
