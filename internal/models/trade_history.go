package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeHistory holds one row per fill/closure event. QuoteStatus is the
// quote's status snapshot at event time, not the current status.
type TradeHistory struct {
	ID          string          `gorm:"primaryKey;type:text"`
	AccountID   string          `gorm:"type:text;not null;index"`
	QuoteID     string          `gorm:"type:text;not null;index"`
	Volume      decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	QuoteStatus int             `gorm:"not null;index"`
	Timestamp   time.Time       `gorm:"type:timestamptz;not null;index"`
	BlockNumber uint64          `gorm:"not null;index"`
	Tenant      string          `gorm:"type:text;not null;index"`
}

func (TradeHistory) TableName() string {
	return "trade_histories"
}
