package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryAggregates are per-affiliate rollup counters pre-aggregated by the
// remote source; they are mirrored as-is and never recomputed locally.
type HistoryAggregates struct {
	QuotesCount   int64           `gorm:"not null;default:0"`
	TradeVolume   decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Deposit       decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Withdraw      decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Allocate      decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Deallocate    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	PlatformFee   decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	OpenInterest  decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	ActiveUsers   int64           `gorm:"not null;default:0"`
	NewUsers      int64           `gorm:"not null;default:0"`
	NewAccounts   int64           `gorm:"not null;default:0"`
	AccountSource *string         `gorm:"type:text;index"`
	Timestamp     time.Time       `gorm:"type:timestamptz;not null;index"`
	Tenant        string          `gorm:"type:text;not null;index"`
}

type DailyHistory struct {
	ID string `gorm:"primaryKey;type:text"`
	HistoryAggregates `gorm:"embedded"`
}

func (DailyHistory) TableName() string {
	return "daily_histories"
}

type WeeklyHistory struct {
	ID string `gorm:"primaryKey;type:text"`
	HistoryAggregates `gorm:"embedded"`
}

func (WeeklyHistory) TableName() string {
	return "weekly_histories"
}

type MonthlyHistory struct {
	ID string `gorm:"primaryKey;type:text"`
	HistoryAggregates `gorm:"embedded"`
}

func (MonthlyHistory) TableName() string {
	return "monthly_histories"
}

type TotalHistory struct {
	ID string `gorm:"primaryKey;type:text"`
	HistoryAggregates `gorm:"embedded"`
}

func (TotalHistory) TableName() string {
	return "total_histories"
}
