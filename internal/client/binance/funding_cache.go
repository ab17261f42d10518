package binance

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// FundingCache memoizes per-symbol premium-index reads (mark price and
// funding rate come from the same endpoint) with a TTL. The clock is
// injected so expiry is deterministic under test.
type FundingCache struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]fundingEntry
}

type fundingEntry struct {
	index     *PremiumIndex
	fetchedAt time.Time
}

func NewFundingCache(client *Client, ttl time.Duration) *FundingCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FundingCache{
		client:  client,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]fundingEntry),
	}
}

// WithNow overrides the expiry clock. For tests.
func (fc *FundingCache) WithNow(now func() time.Time) *FundingCache {
	fc.now = now
	return fc
}

func (fc *FundingCache) lookup(ctx context.Context, symbol string) (*PremiumIndex, error) {
	fc.mu.Lock()
	entry, ok := fc.entries[symbol]
	fc.mu.Unlock()
	if ok && fc.now().Sub(entry.fetchedAt) < fc.ttl {
		return entry.index, nil
	}
	index, err := fc.client.GetPremiumIndex(ctx, symbol)
	if err != nil {
		return nil, err
	}
	fc.mu.Lock()
	fc.entries[symbol] = fundingEntry{index: index, fetchedAt: fc.now()}
	fc.mu.Unlock()
	return index, nil
}

// Rate returns the symbol's funding rate, refreshing it once the cached
// value is older than the TTL.
func (fc *FundingCache) Rate(ctx context.Context, symbol string) (decimal.Decimal, error) {
	index, err := fc.lookup(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return index.LastFundingRate, nil
}

// MarkPrice returns the symbol's mark price from the same cached read.
func (fc *FundingCache) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	index, err := fc.lookup(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return index.MarkPrice, nil
}
