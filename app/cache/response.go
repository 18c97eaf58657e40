// Package cache keeps a Redis copy of completed idempotent responses so
// replays do not hit the primary store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

const keyPrefix = "novapay:idempotency:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type cachedRecord struct {
	Operation    string    `json:"operation"`
	RequestHash  string    `json:"requestHash"`
	FlowID       string    `json:"flowId,omitempty"`
	ResponseCode int       `json:"responseCode"`
	ResponseBody []byte    `json:"responseBody"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type ResponseCache struct {
	client redisClient
}

func NewResponseCache(client redisClient) *ResponseCache {
	return &ResponseCache{client: client}
}

// Get returns the cached record for key, or nil on a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached cachedRecord
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}

	record := &entity.IdempotencyRecord{
		Key:          key,
		Operation:    cached.Operation,
		RequestHash:  cached.RequestHash,
		Status:       entity.IdempotencyCompleted,
		ResponseCode: cached.ResponseCode,
		ResponseBody: cached.ResponseBody,
		CreatedAt:    cached.CreatedAt,
		ExpiresAt:    cached.ExpiresAt,
	}
	if cached.FlowID != "" {
		flowID := cached.FlowID
		record.FlowID = &flowID
	}
	return record, nil
}

// Set stores a completed record. Records that are not completed, or whose
// ttl already ran out, are skipped.
func (c *ResponseCache) Set(ctx context.Context, record *entity.IdempotencyRecord, ttl time.Duration) error {
	if record.Status != entity.IdempotencyCompleted || ttl <= 0 {
		return nil
	}

	cached := cachedRecord{
		Operation:    record.Operation,
		RequestHash:  record.RequestHash,
		ResponseCode: record.ResponseCode,
		ResponseBody: record.ResponseBody,
		CreatedAt:    record.CreatedAt,
		ExpiresAt:    record.ExpiresAt,
	}
	if record.FlowID != nil {
		cached.FlowID = *record.FlowID
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+record.Key, raw, ttl).Err()
}
