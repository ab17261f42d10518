package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"symmio/internal/config"
	"symmio/internal/fixedpoint"
	"symmio/internal/models"
	"symmio/internal/repository"
)

// affiliateBuilder accumulates fields across the aggregate queries, then
// build freezes them into the immutable snapshot row.
type affiliateBuilder struct {
	timestamp   time.Time
	tenant      string
	name        string
	blockNumber uint64

	statusQuotes models.StatusHistogram

	deposit     decimal.Decimal
	withdraw    decimal.Decimal
	allocated   decimal.Decimal
	deallocated decimal.Decimal

	tradeVolume             decimal.Decimal
	closedNotionalValue     decimal.Decimal
	liquidatedNotionalValue decimal.Decimal
	platformFee             decimal.Decimal

	pnlOfClosed     decimal.Decimal
	pnlOfLiquidated decimal.Decimal

	openedCva      decimal.Decimal
	openedLf       decimal.Decimal
	openedPartyAmm decimal.Decimal

	accountsCount       int64
	activeAccountsCount int64
	usersCount          int64
	activeUsersCount    int64
}

func (b *affiliateBuilder) build() *models.AffiliateSnapshot {
	return &models.AffiliateSnapshot{
		Timestamp:               b.timestamp,
		Tenant:                  b.tenant,
		Name:                    b.name,
		BlockNumber:             b.blockNumber,
		StatusQuotes:            b.statusQuotes,
		Deposit:                 b.deposit,
		Withdraw:                b.withdraw,
		Allocated:               b.allocated,
		Deallocated:             b.deallocated,
		TradeVolume:             b.tradeVolume,
		ClosedNotionalValue:     b.closedNotionalValue,
		LiquidatedNotionalValue: b.liquidatedNotionalValue,
		PlatformFee:             b.platformFee,
		PnlOfClosed:             b.pnlOfClosed,
		PnlOfLiquidated:         b.pnlOfLiquidated,
		OpenedCva:               b.openedCva,
		OpenedLf:                b.openedLf,
		OpenedPartyAmm:          b.openedPartyAmm,
		AccountsCount:           b.accountsCount,
		ActiveAccountsCount:     b.activeAccountsCount,
		UsersCount:              b.usersCount,
		ActiveUsersCount:        b.activeUsersCount,
	}
}

// AffiliateComputator aggregates one affiliate's mirrored activity at a block
// height.
type AffiliateComputator struct {
	deps   Deps
	tenant string
}

func NewAffiliateComputator(deps Deps, tenant string) *AffiliateComputator {
	deps.normalize()
	return &AffiliateComputator{deps: deps, tenant: tenant}
}

func (c *AffiliateComputator) Compute(ctx context.Context, rc *models.RuntimeConfiguration, block uint64, affiliate config.AffiliateConfig) (*models.AffiliateSnapshot, error) {
	b := &affiliateBuilder{
		timestamp:   c.deps.Now().UTC(),
		tenant:      c.tenant,
		name:        affiliate.Name,
		blockNumber: block,
	}
	deploy := rc.DeployTimestamp

	var err error
	b.statusQuotes, err = c.deps.Repo.CountQuotesByStatus(ctx, repository.QuoteFilterParams{
		Tenant:        c.tenant,
		AccountSource: affiliate.MultiAccount,
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("status histogram: %w", err)
	}

	for _, agg := range []struct {
		kind string
		dst  *decimal.Decimal
	}{
		{models.BalanceChangeDeposit, &b.deposit},
		{models.BalanceChangeWithdraw, &b.withdraw},
		{models.BalanceChangeAllocate, &b.allocated},
		{models.BalanceChangeDeallocate, &b.deallocated},
	} {
		sum, err := c.deps.Repo.SumBalanceChanges(ctx, repository.BalanceChangeSumParams{
			Tenant:        c.tenant,
			Type:          agg.kind,
			AccountSource: affiliate.MultiAccount,
			MaxBlock:      block,
			After:         deploy,
		})
		if err != nil {
			return nil, fmt.Errorf("sum %s: %w", agg.kind, err)
		}
		// Balance changes are at collateral scale; aggregates are 18dp.
		*agg.dst = fixedpoint.ScaleTo18(sum, rc.Decimals)
	}

	b.tradeVolume, err = c.deps.Repo.SumTradeVolume(ctx, repository.TradeVolumeParams{
		Tenant:        c.tenant,
		AccountSource: affiliate.MultiAccount,
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("trade volume: %w", err)
	}
	b.closedNotionalValue, err = c.deps.Repo.SumTradeVolume(ctx, repository.TradeVolumeParams{
		Tenant:        c.tenant,
		AccountSource: affiliate.MultiAccount,
		QuoteStatuses: []int{models.QuoteStatusClosed},
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("closed notional: %w", err)
	}
	b.liquidatedNotionalValue, err = c.deps.Repo.SumTradeVolume(ctx, repository.TradeVolumeParams{
		Tenant:        c.tenant,
		AccountSource: affiliate.MultiAccount,
		QuoteStatuses: []int{models.QuoteStatusLiquidated},
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("liquidated notional: %w", err)
	}

	openQuotes, err := c.deps.Repo.ListQuotes(ctx, repository.QuoteFilterParams{
		Tenant:        c.tenant,
		Statuses:      models.OpenStatuses,
		AccountSource: affiliate.MultiAccount,
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("open quotes: %w", err)
	}
	b.openedCva, b.openedLf, b.openedPartyAmm = decimal.Zero, decimal.Zero, decimal.Zero
	for _, q := range openQuotes {
		b.openedCva = b.openedCva.Add(q.Cva)
		b.openedLf = b.openedLf.Add(q.Lf)
		b.openedPartyAmm = b.openedPartyAmm.Add(q.PartyAmm)
		b.platformFee = b.platformFee.Add(q.TradingFee)
	}

	closedQuotes, err := c.deps.Repo.ListQuotes(ctx, repository.QuoteFilterParams{
		Tenant:        c.tenant,
		Statuses:      []int{models.QuoteStatusClosed},
		AccountSource: affiliate.MultiAccount,
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("closed quotes: %w", err)
	}
	b.pnlOfClosed = decimal.Zero
	for _, q := range closedQuotes {
		b.pnlOfClosed = b.pnlOfClosed.Add(quotePnl(q, q.AverageClosedPrice))
		b.platformFee = b.platformFee.Add(q.TradingFee)
	}

	liquidatedQuotes, err := c.deps.Repo.ListQuotes(ctx, repository.QuoteFilterParams{
		Tenant:        c.tenant,
		Statuses:      []int{models.QuoteStatusLiquidated},
		AccountSource: affiliate.MultiAccount,
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("liquidated quotes: %w", err)
	}
	b.pnlOfLiquidated = decimal.Zero
	for _, q := range liquidatedQuotes {
		b.pnlOfLiquidated = b.pnlOfLiquidated.Add(quotePnl(q, q.LiquidatePrice))
		b.platformFee = b.platformFee.Add(q.TradingFee)
	}

	activeSince := c.deps.Now().UTC().Add(-activityWindow)
	counts := repository.AccountCountParams{
		Tenant:        c.tenant,
		AccountSource: affiliate.MultiAccount,
		MaxBlock:      block,
		After:         deploy,
	}
	if b.accountsCount, err = c.deps.Repo.CountAccounts(ctx, counts); err != nil {
		return nil, fmt.Errorf("accounts count: %w", err)
	}
	if b.usersCount, err = c.deps.Repo.CountDistinctUsers(ctx, counts); err != nil {
		return nil, fmt.Errorf("users count: %w", err)
	}
	counts.ActiveSince = activeSince
	if b.activeAccountsCount, err = c.deps.Repo.CountAccounts(ctx, counts); err != nil {
		return nil, fmt.Errorf("active accounts count: %w", err)
	}
	if b.activeUsersCount, err = c.deps.Repo.CountDistinctUsers(ctx, counts); err != nil {
		return nil, fmt.Errorf("active users count: %w", err)
	}

	snap := b.build()
	if err := c.deps.Repo.InsertAffiliateSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert affiliate snapshot: %w", err)
	}
	c.deps.Logger.Info("affiliate snapshot computed",
		zap.String("tenant", c.tenant),
		zap.String("affiliate", affiliate.Name),
		zap.Uint64("block", block))
	return snap, nil
}
