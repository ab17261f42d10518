package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"symmio/internal/chain"
	"symmio/internal/client/binance"
	"symmio/internal/models"
)

// ExchangeAccount reads one hedger's keyed futures account.
type ExchangeAccount interface {
	Account(ctx context.Context) (*binance.AccountSummary, error)
}

// HedgerBinanceComputator mirrors the hedger's exchange sub-account state.
// Exchange balances are only meaningful paired with a live block: for a
// historical block the row is written with zeros rather than mixing epochs.
type HedgerBinanceComputator struct {
	deps   Deps
	tenant string
}

func NewHedgerBinanceComputator(deps Deps, tenant string) *HedgerBinanceComputator {
	deps.normalize()
	return &HedgerBinanceComputator{deps: deps, tenant: tenant}
}

func (c *HedgerBinanceComputator) Compute(ctx context.Context, block *chain.BlockRef, hedgerName string, account ExchangeAccount) (*models.HedgerBinanceSnapshot, error) {
	snap := &models.HedgerBinanceSnapshot{
		Timestamp:          c.deps.Now().UTC(),
		Tenant:             c.tenant,
		HedgerName:         hedgerName,
		TotalMarginBalance: decimal.Zero,
		TotalWalletBalance: decimal.Zero,
		AvailableBalance:   decimal.Zero,
		Upnl:               decimal.Zero,
		MaintMargin:        decimal.Zero,
	}

	forPast, err := block.IsForPast(ctx)
	if err != nil {
		return nil, fmt.Errorf("classify block: %w", err)
	}
	if forPast {
		c.deps.Logger.Info("block too old for exchange reads, writing zeros",
			zap.String("tenant", c.tenant),
			zap.String("hedger", hedgerName),
			zap.Uint64("block", block.Number))
	} else {
		summary, err := account.Account(ctx)
		if err != nil {
			return nil, fmt.Errorf("exchange account: %w", err)
		}
		snap.TotalMarginBalance = summary.TotalMarginBalance
		snap.TotalWalletBalance = summary.TotalWalletBalance
		snap.AvailableBalance = summary.AvailableBalance
		snap.Upnl = summary.TotalUnrealizedProfit
		snap.MaintMargin = summary.TotalMaintMargin
		if raw, err := json.Marshal(summary); err == nil {
			snap.Raw = datatypes.JSON(raw)
		}
	}

	if err := c.deps.Repo.InsertHedgerBinanceSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert hedger binance snapshot: %w", err)
	}
	return snap, nil
}
