// Package chain wraps on-chain reads: block references with freshness
// classification and batched contract calls against the protocol diamond.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// FreshnessThreshold separates live blocks from historical ones. Snapshot
// computations combine on-chain reads with live exchange reads only when the
// pinned block is younger than this; otherwise the two would describe
// different points in time.
const FreshnessThreshold = 10 * time.Minute

// HeaderReader is the subset of the RPC client a BlockRef needs.
type HeaderReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// BlockRef wraps a block height. The block's wall-clock time is resolved
// lazily (one header fetch) and memoized. A BlockRef is used by one tenant
// job at a time, so no locking.
type BlockRef struct {
	Number uint64

	client   HeaderReader
	now      func() time.Time
	ts       time.Time
	resolved bool
}

// Latest returns a reference to the current chain head.
func Latest(ctx context.Context, client HeaderReader) (*BlockRef, error) {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain head: %w", err)
	}
	return &BlockRef{Number: head, client: client, now: time.Now}, nil
}

// At returns a reference to an explicit historical height.
func At(client HeaderReader, number uint64) *BlockRef {
	return &BlockRef{Number: number, client: client, now: time.Now}
}

// WithNow overrides the clock used by IsForPast. For tests.
func (b *BlockRef) WithNow(now func() time.Time) *BlockRef {
	b.now = now
	return b
}

// Backward steps the height back by n, clamped at zero. The returned ref
// shares the client but not the memoized timestamp.
func (b *BlockRef) Backward(n uint64) *BlockRef {
	number := b.Number
	if n >= number {
		number = 0
	} else {
		number -= n
	}
	return &BlockRef{Number: number, client: b.client, now: b.now}
}

// Time resolves and caches the block's wall-clock time.
func (b *BlockRef) Time(ctx context.Context) (time.Time, error) {
	if b.resolved {
		return b.ts, nil
	}
	header, err := b.client.HeaderByNumber(ctx, new(big.Int).SetUint64(b.Number))
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch header %d: %w", b.Number, err)
	}
	b.ts = time.Unix(int64(header.Time), 0).UTC()
	b.resolved = true
	return b.ts, nil
}

// IsForPast reports whether the block is older than the freshness threshold.
func (b *BlockRef) IsForPast(ctx context.Context) (bool, error) {
	ts, err := b.Time(ctx)
	if err != nil {
		return false, err
	}
	return b.now().Sub(ts) > FreshnessThreshold, nil
}
