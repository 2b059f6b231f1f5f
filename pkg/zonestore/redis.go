// Package zonestore serves participant zones to the governance engine from a
// snapshot that is refreshed out of band, so resolving never blocks on I/O.
package zonestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Source loads the current zone of every participant it knows about.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (map[string]string, error)

func (f SourceFunc) Load(ctx context.Context) (map[string]string, error) { return f(ctx) }

// redisFreshZonesScript returns the zone hash, leaving out entries whose
// last write is older than the max age.
// KEYS[1] = zone hash (participant -> zone id)
// KEYS[2] = seen hash (participant -> unix seconds of last write)
// ARGV[1] = current unix time in seconds
// ARGV[2] = max age in seconds, 0 disables the check
var redisFreshZonesScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local max_age = tonumber(ARGV[2])

local zones = redis.call("HGETALL", KEYS[1])
local out = {}
for i = 1, #zones, 2 do
    local id = zones[i]
    local fresh = true
    if max_age > 0 then
        local seen = tonumber(redis.call("HGET", KEYS[2], id))
        fresh = seen ~= nil and (now - seen) <= max_age
    end
    if fresh then
        out[#out + 1] = id
        out[#out + 1] = zones[i + 1]
    end
end
return out
`)

// RedisSource reads the denoised zone of each participant from a Redis hash
// maintained by the zone producer.
type RedisSource struct {
	client *redis.Client
	key    string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisSource creates a source backed by Redis. Entries not written for
// longer than maxAge are treated as missing; maxAge <= 0 keeps every entry.
func NewRedisSource(addr, password string, db int, key string, maxAge time.Duration) *RedisSource {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisSourceFromClient(rdb, key, maxAge)
}

// NewRedisSourceFromClient wraps an existing client.
func NewRedisSourceFromClient(client *redis.Client, key string, maxAge time.Duration) *RedisSource {
	return &RedisSource{client: client, key: key, maxAge: maxAge, now: time.Now}
}

func (s *RedisSource) seenKey() string { return s.key + ":seen" }

// Load returns every fresh participant zone.
func (s *RedisSource) Load(ctx context.Context) (map[string]string, error) {
	now := float64(s.now().UnixMicro()) / 1e6
	res, err := redisFreshZonesScript.Run(ctx, s.client, []string{s.key, s.seenKey()}, now, s.maxAge.Seconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zone load: %w", err)
	}

	items, ok := res.([]interface{})
	if !ok || len(items)%2 != 0 {
		return nil, fmt.Errorf("redis zone load: invalid response from lua script")
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		id, _ := items[i].(string)
		zone, _ := items[i+1].(string)
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		out[id] = zone
	}
	return out, nil
}

// Publish records the zone of one participant. Producers call it; the
// governance host only reads.
func (s *RedisSource) Publish(ctx context.Context, participantID, zone string) error {
	now := float64(s.now().UnixMicro()) / 1e6
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, participantID, zone)
		pipe.HSet(ctx, s.seenKey(), participantID, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis zone publish: %w", err)
	}
	return nil
}

// Forget removes a participant from the store.
func (s *RedisSource) Forget(ctx context.Context, participantID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key, participantID)
		pipe.HDel(ctx, s.seenKey(), participantID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis zone forget: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
