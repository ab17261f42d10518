package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"symmio/internal/config"
	"symmio/internal/fixedpoint"
	"symmio/internal/models"
	"symmio/internal/repository"
)

type hedgerBuilder struct {
	timestamp  time.Time
	tenant     string
	hedgerName string
	block      uint64

	upnl                decimal.Decimal
	pnlOfClosed         decimal.Decimal
	pnlOfLiquidated     decimal.Decimal
	contractAllocated   decimal.Decimal
	fundingPaid         decimal.Decimal
	fundingReceived     decimal.Decimal
	closedNotionalValue decimal.Decimal
	openQuotesCount     int64
}

func (b *hedgerBuilder) build() *models.HedgerSnapshot {
	return &models.HedgerSnapshot{
		Timestamp:           b.timestamp,
		Tenant:              b.tenant,
		HedgerName:          b.hedgerName,
		BlockNumber:         b.block,
		Upnl:                b.upnl,
		PnlOfClosed:         b.pnlOfClosed,
		PnlOfLiquidated:     b.pnlOfLiquidated,
		ContractAllocated:   b.contractAllocated,
		FundingPaid:         b.fundingPaid,
		FundingReceived:     b.fundingReceived,
		ClosedNotionalValue: b.closedNotionalValue,
		OpenQuotesCount:     b.openQuotesCount,
	}
}

// HedgerComputator aggregates one hedger's exposure: unrealized pnl of the
// open book against live mark prices, realized pnl, funding, and on-chain
// allocations.
type HedgerComputator struct {
	deps   Deps
	tenant string
}

func NewHedgerComputator(deps Deps, tenant string) *HedgerComputator {
	deps.normalize()
	return &HedgerComputator{deps: deps, tenant: tenant}
}

func (c *HedgerComputator) Compute(ctx context.Context, rc *models.RuntimeConfiguration, block uint64, hedger config.HedgerConfig) (*models.HedgerSnapshot, error) {
	b := &hedgerBuilder{
		timestamp:  c.deps.Now().UTC(),
		tenant:     c.tenant,
		hedgerName: hedger.Name,
		block:      block,
	}
	deploy := rc.DeployTimestamp
	partyB := repository.QuoteFilterParams{
		Tenant:   c.tenant,
		PartyB:   hedger.Address,
		MaxBlock: block,
		After:    deploy,
	}

	openQuotes, err := c.deps.Repo.ListQuotes(ctx, repository.QuoteFilterParams{
		Tenant:   c.tenant,
		Statuses: models.OpenStatuses,
		PartyB:   hedger.Address,
		MaxBlock: block,
		After:    deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("open quotes: %w", err)
	}
	b.openQuotesCount = int64(len(openQuotes))

	symbolNames, err := c.symbolNames(ctx)
	if err != nil {
		return nil, err
	}
	b.upnl, err = c.openBookUpnl(ctx, openQuotes, symbolNames)
	if err != nil {
		return nil, err
	}

	closedQuotes, err := c.deps.Repo.ListQuotes(ctx, repository.QuoteFilterParams{
		Tenant:   c.tenant,
		Statuses: []int{models.QuoteStatusClosed},
		PartyB:   hedger.Address,
		MaxBlock: block,
		After:    deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("closed quotes: %w", err)
	}
	b.pnlOfClosed = decimal.Zero
	for _, q := range closedQuotes {
		b.pnlOfClosed = b.pnlOfClosed.Add(quotePnl(q, q.AverageClosedPrice))
	}

	liquidatedQuotes, err := c.deps.Repo.ListQuotes(ctx, repository.QuoteFilterParams{
		Tenant:   c.tenant,
		Statuses: []int{models.QuoteStatusLiquidated},
		PartyB:   hedger.Address,
		MaxBlock: block,
		After:    deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("liquidated quotes: %w", err)
	}
	b.pnlOfLiquidated = decimal.Zero
	for _, q := range liquidatedQuotes {
		b.pnlOfLiquidated = b.pnlOfLiquidated.Add(quotePnl(q, q.LiquidatePrice))
	}

	funding, err := c.deps.Repo.SumQuoteFunding(ctx, partyB)
	if err != nil {
		return nil, fmt.Errorf("funding sums: %w", err)
	}
	// userPaidFunding is funding the hedger received, and vice versa.
	b.fundingReceived = funding.Paid
	b.fundingPaid = funding.Received

	b.closedNotionalValue, err = c.deps.Repo.SumTradeVolume(ctx, repository.TradeVolumeParams{
		Tenant:        c.tenant,
		PartyB:        hedger.Address,
		QuoteStatuses: []int{models.QuoteStatusClosed},
		MaxBlock:      block,
		After:         deploy,
	})
	if err != nil {
		return nil, fmt.Errorf("closed notional: %w", err)
	}

	b.contractAllocated, err = c.contractAllocated(ctx, openQuotes, hedger, block)
	if err != nil {
		return nil, err
	}

	if c.deps.Debug {
		c.crossCheckOpenQuotes(ctx, openQuotes, block)
	}

	snap := b.build()
	if err := c.deps.Repo.InsertHedgerSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert hedger snapshot: %w", err)
	}
	c.deps.Logger.Info("hedger snapshot computed",
		zap.String("tenant", c.tenant),
		zap.String("hedger", hedger.Name),
		zap.Uint64("block", block),
		zap.Int64("open_quotes", b.openQuotesCount))
	return snap, nil
}

func (c *HedgerComputator) symbolNames(ctx context.Context) (map[string]string, error) {
	symbols, err := c.deps.Repo.ListSymbols(ctx, c.tenant)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	names := make(map[string]string, len(symbols))
	for _, s := range symbols {
		names[s.ID] = s.Name
	}
	return names, nil
}

// openBookUpnl sums sign*(openPrice - markPrice*1e18)*(quantity-closedAmount)/1e18
// over the open quotes, floored per quote, with mark prices fetched live once
// per symbol.
func (c *HedgerComputator) openBookUpnl(ctx context.Context, openQuotes []models.Quote, symbolNames map[string]string) (decimal.Decimal, error) {
	markPrices := make(map[string]decimal.Decimal)
	upnl := decimal.Zero
	for _, q := range openQuotes {
		name, ok := symbolNames[q.SymbolID]
		if !ok {
			c.deps.Logger.Warn("open quote references unknown symbol",
				zap.String("quote", q.ID), zap.String("symbol_id", q.SymbolID))
			continue
		}
		mark, ok := markPrices[name]
		if !ok {
			var err error
			mark, err = c.deps.Prices.MarkPrice(ctx, name)
			if err != nil {
				return decimal.Zero, fmt.Errorf("mark price %s: %w", name, err)
			}
			markPrices[name] = mark
		}
		openAmount := q.Quantity.Sub(q.ClosedAmount)
		diff := q.OpenedPrice.Sub(mark.Mul(fixedpoint.Unit))
		contribution := fixedpoint.MulDiv1e18(diff, openAmount)
		if q.PositionType == models.PositionTypeShort {
			contribution = contribution.Neg()
		}
		upnl = upnl.Add(contribution)
	}
	return upnl, nil
}

func (c *HedgerComputator) contractAllocated(ctx context.Context, openQuotes []models.Quote, hedger config.HedgerConfig, block uint64) (decimal.Decimal, error) {
	seen := make(map[common.Address]struct{})
	var partyAs []common.Address
	for _, q := range openQuotes {
		addr := common.HexToAddress(accountAddress(c.tenant, q.AccountID))
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		partyAs = append(partyAs, addr)
	}
	balances, err := c.deps.Chain.AllocatedBalancesOfPartyB(ctx, common.HexToAddress(hedger.Address), partyAs, block)
	if err != nil {
		return decimal.Zero, fmt.Errorf("allocated balances: %w", err)
	}
	total := decimal.Zero
	for _, balance := range balances {
		total = total.Add(balance)
	}
	return total, nil
}

// crossCheckOpenQuotes compares the mirrored open-quote set against the
// on-chain enumeration, logging keys present on-chain but missing locally.
// A consistency check only; it never corrects or fails the run.
func (c *HedgerComputator) crossCheckOpenQuotes(ctx context.Context, openQuotes []models.Quote, block uint64) {
	localIDs := make(map[string]map[string]struct{})
	for _, q := range openQuotes {
		addr := accountAddress(c.tenant, q.AccountID)
		if localIDs[addr] == nil {
			localIDs[addr] = make(map[string]struct{})
		}
		localIDs[addr][accountAddress(c.tenant, q.ID)] = struct{}{}
	}
	for addr, ids := range localIDs {
		chainIDs, err := c.deps.Chain.OpenPositionIDs(ctx, common.HexToAddress(addr), block)
		if err != nil {
			c.deps.Logger.Debug("open-position cross-check skipped",
				zap.String("party_a", addr), zap.Error(err))
			continue
		}
		for _, id := range chainIDs {
			if _, ok := ids[id]; !ok {
				c.deps.Logger.Debug("open position missing from mirror",
					zap.String("tenant", c.tenant),
					zap.String("party_a", addr),
					zap.String("quote_id", id))
			}
		}
	}
}
