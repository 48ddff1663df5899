package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	txCachePrefix       = "ledger:tx:v1:"
	transferCachePrefix = "ledger:transfer:v1:"
)

// ResponseCache is a Redis-backed fast replay path in front of the durable
// stored-response tables. Entries expire per the configured TTL; a miss
// always falls through to the authoritative store, so eviction never breaks
// idempotence. Writes are best effort.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewResponseCache builds a response cache around the provided Redis client.
func NewResponseCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl, logger: logger}
}

// GetTransaction returns the cached response for a transaction key, if any.
func (c *ResponseCache) GetTransaction(ctx context.Context, key string) (TransactionResult, bool) {
	var res TransactionResult
	if !c.get(ctx, txCachePrefix+key, &res) {
		return TransactionResult{}, false
	}
	return res, true
}

// PutTransaction stores a transaction response for fast replay.
func (c *ResponseCache) PutTransaction(ctx context.Context, key string, res TransactionResult) {
	c.put(ctx, txCachePrefix+key, res)
}

// GetTransfer returns the cached response for a transfer key, if any.
func (c *ResponseCache) GetTransfer(ctx context.Context, key string) (TransferResult, bool) {
	var res TransferResult
	if !c.get(ctx, transferCachePrefix+key, &res) {
		return TransferResult{}, false
	}
	return res, true
}

// PutTransfer stores a transfer response for fast replay.
func (c *ResponseCache) PutTransfer(ctx context.Context, key string, res TransferResult) {
	c.put(ctx, transferCachePrefix+key, res)
}

func (c *ResponseCache) get(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("response cache lookup failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.Warn("failed to decode cached response", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (c *ResponseCache) put(ctx context.Context, key string, res any) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("failed to encode response for cache", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache response", slog.String("key", key), slog.Any("error", err))
	}
}
