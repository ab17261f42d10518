// Package snapshot computes immutable point-in-time financial aggregates
// against the synced mirror plus live on-chain and exchange reads.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"symmio/internal/chain"
	"symmio/internal/fixedpoint"
	"symmio/internal/models"
	"symmio/internal/repository"
)

// activityWindow bounds the "active" account/user sub-counts.
const activityWindow = 48 * time.Hour

// ChainReader is the subset of the on-chain reader the computators use.
type ChainReader interface {
	BalanceOf(ctx context.Context, account common.Address, block uint64) (decimal.Decimal, error)
	AllocatedBalancesOfPartyB(ctx context.Context, partyB common.Address, partyAs []common.Address, block uint64) (map[common.Address]decimal.Decimal, error)
	BalanceInfoOfPartyA(ctx context.Context, partyA common.Address, block uint64) (*chain.PartyABalanceInfo, error)
	OpenPositionIDs(ctx context.Context, partyA common.Address, block uint64) ([]string, error)
	TxCountOf(ctx context.Context, account common.Address, block uint64) (uint64, error)
}

// PriceSource supplies live mark prices per exchange symbol.
type PriceSource interface {
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Deps are the collaborators shared by all computators for one tenant.
type Deps struct {
	Repo   repository.Repository
	Chain  ChainReader
	Prices PriceSource
	Logger *zap.Logger
	Now    func() time.Time
	Debug  bool
}

func (d *Deps) normalize() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// quotePnl is the realized pnl of one quote against a close price:
// -(quantity * (closePrice - openPrice)) / 1e18 for longs, sign-flipped for
// shorts, floored division.
func quotePnl(q models.Quote, closePrice decimal.Decimal) decimal.Decimal {
	pnl := fixedpoint.MulDiv1e18(q.Quantity, closePrice.Sub(q.OpenedPrice)).Neg()
	if q.PositionType == models.PositionTypeShort {
		return pnl.Neg()
	}
	return pnl
}

// accountAddress strips the tenant prefix from a mirrored account id,
// recovering the on-chain address.
func accountAddress(tenant, accountID string) string {
	return strings.TrimPrefix(accountID, tenant+"_")
}
