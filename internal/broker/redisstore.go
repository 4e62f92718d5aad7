package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assocproxy/pkg/tenants"
)

const defaultRedisPrefix = "verenigingen-proxy:token:"

// redisStore shares tokens between proxy replicas. Entries expire in Redis at the token's hard expiry.
type redisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore returns a Store backed by Redis. An empty prefix selects the default namespace.
func NewRedisStore(rdb redis.UniversalClient, prefix string) Store {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisStore{rdb: rdb, prefix: prefix}
}

func (s *redisStore) Get(ctx context.Context, key tenants.TenantKey) (CachedToken, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedToken{}, false, nil
	}
	if err != nil {
		return CachedToken{}, false, fmt.Errorf("redis get token: %w", err)
	}
	var tok CachedToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return CachedToken{}, false, fmt.Errorf("decode cached token: %w", err)
	}
	return tok, true, nil
}

func (s *redisStore) Put(ctx context.Context, key tenants.TenantKey, tok CachedToken) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	ttl := time.Until(tok.ExpiresAt())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, s.prefix+string(key), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}
