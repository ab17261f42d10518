package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance change types as emitted by the remote source.
const (
	BalanceChangeDeposit    = "DEPOSIT"
	BalanceChangeWithdraw   = "WITHDRAW"
	BalanceChangeAllocate   = "ALLOCATE_PARTY_A"
	BalanceChangeDeallocate = "DEALLOCATE_PARTY_A"
)

// BalanceChange amounts are raw fixed-point integers at the collateral
// token's native scale; rescaling to 18 decimals happens at aggregation time.
type BalanceChange struct {
	ID          string          `gorm:"primaryKey;type:text"`
	AccountID   string          `gorm:"type:text;not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Collateral  string          `gorm:"type:text"`
	Type        string          `gorm:"type:text;not null;index"`
	Timestamp   time.Time       `gorm:"type:timestamptz;not null;index"`
	BlockNumber uint64          `gorm:"not null;index"`
	Tenant      string          `gorm:"type:text;not null;index"`
}

func (BalanceChange) TableName() string {
	return "balance_changes"
}
