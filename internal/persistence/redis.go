package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "citarion:snapshot:"

// RedisStore keeps snapshots in Redis so several processes can share learned
// state. A zero TTL keeps snapshots until overwritten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Save stores the snapshot as a JSON blob under the symbol's key.
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", snap.Symbol, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+snap.Symbol, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save snapshot for %s: %w", snap.Symbol, err)
	}
	log.Debug().Str("symbol", snap.Symbol).Int("bytes", len(data)).Msg("snapshot saved to redis")
	return nil
}

// Load fetches and decodes the snapshot for a symbol.
func (s *RedisStore) Load(ctx context.Context, symbol string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("symbol %s: %w", symbol, ErrNotFound)
		}
		return nil, fmt.Errorf("redis load snapshot for %s: %w", symbol, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", symbol, err)
	}
	return &snap, nil
}
