package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidatorSnapshot records all configured liquidator wallets of one tenant
// at one block height, plus totals across them.
type LiquidatorSnapshot struct {
	Timestamp time.Time `gorm:"primaryKey;type:timestamptz"`
	Tenant    string    `gorm:"primaryKey;type:text"`

	BlockNumber uint64 `gorm:"not null"`

	States LiquidatorStates `gorm:"type:jsonb;not null"`

	TotalBalance   decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	TotalWithdraw  decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	TotalAllocated decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (LiquidatorSnapshot) TableName() string {
	return "liquidator_snapshots"
}

func (s LiquidatorSnapshot) NumericFields() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"total_balance":   s.TotalBalance,
		"total_withdraw":  s.TotalWithdraw,
		"total_allocated": s.TotalAllocated,
	}
}
