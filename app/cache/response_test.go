package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type fakeRedis struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(value), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestResponseCacheRoundTrip(t *testing.T) {
	client := newFakeRedis()
	cache := NewResponseCache(client)
	ctx := context.Background()

	flowID := "flow_1"
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := &entity.IdempotencyRecord{
		Key:          "key_1:t1",
		Operation:    "reserve",
		RequestHash:  "hash",
		FlowID:       &flowID,
		Status:       entity.IdempotencyCompleted,
		ResponseCode: 200,
		ResponseBody: []byte(`{"ok":true}`),
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
	}

	require.NoError(t, cache.Set(ctx, record, time.Hour))
	assert.Equal(t, time.Hour, client.ttls[keyPrefix+"key_1:t1"])

	got, err := cache.Get(ctx, "key_1:t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.RequestHash, got.RequestHash)
	assert.Equal(t, record.ResponseBody, got.ResponseBody)
	assert.Equal(t, 200, got.ResponseCode)
	assert.Equal(t, entity.IdempotencyCompleted, got.Status)
	require.NotNil(t, got.FlowID)
	assert.Equal(t, flowID, *got.FlowID)
	assert.True(t, record.ExpiresAt.Equal(got.ExpiresAt))
}

func TestResponseCacheMiss(t *testing.T) {
	cache := NewResponseCache(newFakeRedis())

	got, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResponseCacheSkipsProcessingRecords(t *testing.T) {
	client := newFakeRedis()
	cache := NewResponseCache(client)

	err := cache.Set(context.Background(), &entity.IdempotencyRecord{Key: "k", Status: entity.IdempotencyProcessing}, time.Hour)
	require.NoError(t, err)
	err = cache.Set(context.Background(), &entity.IdempotencyRecord{Key: "k", Status: entity.IdempotencyCompleted}, 0)
	require.NoError(t, err)
	assert.Empty(t, client.values)
}

func TestResponseCachePropagatesErrors(t *testing.T) {
	client := newFakeRedis()
	client.getErr = errors.New("connection refused")

	_, err := NewResponseCache(client).Get(context.Background(), "k")
	require.Error(t, err)
}
