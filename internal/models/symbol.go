package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Symbol struct {
	ID         string          `gorm:"primaryKey;type:text"`
	Name       string          `gorm:"type:text;not null"`
	TradingFee decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Timestamp  time.Time       `gorm:"type:timestamptz;not null"`
	Tenant     string          `gorm:"type:text;not null;index"`
}

func (Symbol) TableName() string {
	return "symbols"
}
