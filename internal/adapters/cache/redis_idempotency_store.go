package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

const idempotencyKeyPrefix = "settlement:idem:"

// RedisIdempotencyStore holds submission idempotency records keyed by the
// client-supplied Idempotency-Key header.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string, _ time.Time) (*ports.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record ports.IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Reserve claims the key atomically. A key that is already held, by a
// concurrent request or an earlier reservation, is a conflict.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	record := ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	claimed, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, raw, time.Until(expiresAt)).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	fullKey := idempotencyKeyPrefix + key
	raw, err := s.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		return err
	}
	var record ports.IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return err
	}
	record.ResponseCode = responseCode
	record.ResponseBody = responseBody
	updated, err := json.Marshal(record)
	if err != nil {
		return err
	}
	// KeepTTL preserves the reservation's expiry.
	return s.client.Set(ctx, fullKey, updated, redis.KeepTTL).Err()
}
