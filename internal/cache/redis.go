package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/redis/go-redis/v9"
)

// setIfNewer writes the cart hash unless the stored version is newer.
// KEYS[1] cart key, ARGV[1] version, ARGV[2] cart json, ARGV[3] ttl in ms.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// DefaultTTL is used when NewRedisCache is given a non-positive TTL.
const DefaultTTL = 15 * time.Minute

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, token string) (*domain.Cart, error) {
	data, err := r.client.HGet(ctx, cacheKey(token), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	cart := domain.NewCart()
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if cart.Items == nil {
		cart.Items = make(map[string]domain.LineItem)
	}

	return cart, nil
}

func (r *RedisCache) Set(ctx context.Context, token string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expiry of carts written in the same burst
	ttl := r.baseTTL + time.Duration(rand.Int64N(int64(r.baseTTL/4)+1))

	err = setIfNewer.Run(ctx, r.client, []string{cacheKey(token)},
		cart.Version, string(data), ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, cacheKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping checks connectivity at startup.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func cacheKey(token string) string {
	return fmt.Sprintf("cart:%s", token)
}
