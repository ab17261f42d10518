package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GasHistory is a running counter per wallet, not a time series. Updates are
// read-increment-write within one transaction to avoid lost increments.
type GasHistory struct {
	Address      string          `gorm:"primaryKey;type:text"`
	Tenant       string          `gorm:"primaryKey;type:text"`
	GasAmount    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	TxCount      int64           `gorm:"not null;default:0"`
	InitialBlock uint64          `gorm:"not null;default:0"`
	UpdatedAt    time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (GasHistory) TableName() string {
	return "gas_histories"
}
