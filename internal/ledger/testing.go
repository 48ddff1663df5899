package ledger

// SeedBalance is a test helper that overwrites a wallet balance when using
// the in-memory ledger.
func SeedBalance(l Ledger, id string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[id]
		w.ID = id
		w.Balance = amount
		mem.wallets[id] = w
	}
}

// DropStoredResponse removes the stored responses for an idempotency key
// while leaving the journal entries in place. Simulates journal/response
// divergence for duplicate-detection tests.
func DropStoredResponse(l Ledger, key string) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		delete(mem.txResponses, key)
		delete(mem.transferResponses, key)
	}
}
