package ledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kobo-pay/kobo_pay/internal/logging"
)

func setupCache(t *testing.T, ttl time.Duration) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewResponseCache(client, ttl, logging.Discard()), mr
}

func TestResponseCache_TransactionRoundTrip(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	ctx := context.Background()

	if _, ok := cache.GetTransaction(ctx, "k1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	res := TransactionResult{
		TransactionID: "tx-1",
		WalletID:      "w-1",
		Balance:       300,
		AppliedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	cache.PutTransaction(ctx, "k1", res)

	got, ok := cache.GetTransaction(ctx, "k1")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if !got.AppliedAt.Equal(res.AppliedAt) || got.TransactionID != res.TransactionID || got.Balance != res.Balance {
		t.Fatalf("cached response differs: %+v vs %+v", got, res)
	}
}

func TestResponseCache_TransferKeysAreSeparate(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	ctx := context.Background()

	cache.PutTransaction(ctx, "shared", TransactionResult{TransactionID: "tx-1"})

	// A transfer with the same raw key must not see the transaction entry.
	if _, ok := cache.GetTransfer(ctx, "shared"); ok {
		t.Fatal("transfer lookup hit a transaction entry")
	}

	cache.PutTransfer(ctx, "shared", TransferResult{TransferID: "tr-1", FromBalance: 60, ToBalance: 40})
	got, ok := cache.GetTransfer(ctx, "shared")
	if !ok || got.TransferID != "tr-1" {
		t.Fatalf("expected transfer hit, got %+v ok=%v", got, ok)
	}
}

func TestResponseCache_EntriesExpire(t *testing.T) {
	cache, mr := setupCache(t, time.Second)
	ctx := context.Background()

	cache.PutTransaction(ctx, "k1", TransactionResult{TransactionID: "tx-1"})
	mr.FastForward(2 * time.Second)

	if _, ok := cache.GetTransaction(ctx, "k1"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestResponseCache_NilCacheIsSafe(t *testing.T) {
	var cache *ResponseCache
	ctx := context.Background()

	cache.PutTransaction(ctx, "k1", TransactionResult{})
	if _, ok := cache.GetTransaction(ctx, "k1"); ok {
		t.Fatal("nil cache returned a hit")
	}
}
