package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"symmio/internal/models"
	"symmio/internal/repository"
)

// estimatedGasPerTx approximates the gas burned per liquidator transaction.
// Receipts are not indexed, so the accumulator works off the wallet's nonce
// delta and a flat per-tx estimate.
var estimatedGasPerTx = decimal.NewFromInt(400_000)

type liquidatorBuilder struct {
	timestamp time.Time
	tenant    string
	block     uint64

	states         models.LiquidatorStates
	totalBalance   decimal.Decimal
	totalWithdraw  decimal.Decimal
	totalAllocated decimal.Decimal
}

func (b *liquidatorBuilder) add(state models.LiquidatorState) {
	b.states = append(b.states, state)
	b.totalBalance = b.totalBalance.Add(state.Balance)
	b.totalWithdraw = b.totalWithdraw.Add(state.Withdraw)
	b.totalAllocated = b.totalAllocated.Add(state.Allocated)
}

func (b *liquidatorBuilder) build() *models.LiquidatorSnapshot {
	return &models.LiquidatorSnapshot{
		Timestamp:      b.timestamp,
		Tenant:         b.tenant,
		BlockNumber:    b.block,
		States:         b.states,
		TotalBalance:   b.totalBalance,
		TotalWithdraw:  b.totalWithdraw,
		TotalAllocated: b.totalAllocated,
	}
}

// LiquidatorComputator records every configured liquidator wallet's balances
// at a block height and advances the per-wallet gas accumulators.
type LiquidatorComputator struct {
	deps   Deps
	tenant string
}

func NewLiquidatorComputator(deps Deps, tenant string) *LiquidatorComputator {
	deps.normalize()
	return &LiquidatorComputator{deps: deps, tenant: tenant}
}

func (c *LiquidatorComputator) Compute(ctx context.Context, rc *models.RuntimeConfiguration, block uint64, liquidators []string) (*models.LiquidatorSnapshot, error) {
	b := &liquidatorBuilder{
		timestamp:      c.deps.Now().UTC(),
		tenant:         c.tenant,
		block:          block,
		totalBalance:   decimal.Zero,
		totalWithdraw:  decimal.Zero,
		totalAllocated: decimal.Zero,
	}

	for _, addr := range liquidators {
		state, err := c.walletState(ctx, rc, addr, block)
		if err != nil {
			return nil, err
		}
		b.add(state)
	}

	snap := b.build()
	if err := c.deps.Repo.InsertLiquidatorSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert liquidator snapshot: %w", err)
	}

	if err := c.updateGasHistories(ctx, liquidators, block); err != nil {
		return nil, err
	}

	c.deps.Logger.Info("liquidator snapshot computed",
		zap.String("tenant", c.tenant),
		zap.Uint64("block", block),
		zap.Int("liquidators", len(liquidators)))
	return snap, nil
}

func (c *LiquidatorComputator) walletState(ctx context.Context, rc *models.RuntimeConfiguration, addr string, block uint64) (models.LiquidatorState, error) {
	wallet := common.HexToAddress(addr)
	balance, err := c.deps.Chain.BalanceOf(ctx, wallet, block)
	if err != nil {
		return models.LiquidatorState{}, fmt.Errorf("balance of %s: %w", addr, err)
	}
	info, err := c.deps.Chain.BalanceInfoOfPartyA(ctx, wallet, block)
	if err != nil {
		return models.LiquidatorState{}, fmt.Errorf("balance info of %s: %w", addr, err)
	}
	withdraw, err := c.deps.Repo.SumBalanceChanges(ctx, repository.BalanceChangeSumParams{
		Tenant:    c.tenant,
		Type:      models.BalanceChangeWithdraw,
		AccountID: c.tenant + "_" + addr,
		MaxBlock:  block,
		After:     rc.DeployTimestamp,
	})
	if err != nil {
		return models.LiquidatorState{}, fmt.Errorf("withdraw sum of %s: %w", addr, err)
	}
	return models.LiquidatorState{
		Address:   addr,
		Withdraw:  withdraw,
		Balance:   balance,
		Allocated: info.AllocatedBalance,
	}, nil
}

// updateGasHistories advances each wallet's running tx/gas counters by the
// nonce delta since the stored count. Read-increment-write inside one
// transaction so a concurrent retry cannot lose an increment.
func (c *LiquidatorComputator) updateGasHistories(ctx context.Context, liquidators []string, block uint64) error {
	return c.deps.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, addr := range liquidators {
			nonce, err := c.deps.Chain.TxCountOf(ctx, common.HexToAddress(addr), block)
			if err != nil {
				return fmt.Errorf("tx count of %s: %w", addr, err)
			}
			history, err := c.deps.Repo.GetGasHistoryTx(ctx, tx, addr, c.tenant)
			if err != nil {
				return fmt.Errorf("gas history of %s: %w", addr, err)
			}
			if history == nil {
				history = &models.GasHistory{
					Address:      addr,
					Tenant:       c.tenant,
					GasAmount:    decimal.Zero,
					InitialBlock: block,
				}
			}
			if delta := int64(nonce) - history.TxCount; delta > 0 {
				history.TxCount = int64(nonce)
				history.GasAmount = history.GasAmount.Add(estimatedGasPerTx.Mul(decimal.NewFromInt(delta)))
			}
			if err := c.deps.Repo.SaveGasHistoryTx(ctx, tx, history); err != nil {
				return fmt.Errorf("save gas history of %s: %w", addr, err)
			}
		}
		return nil
	})
}
