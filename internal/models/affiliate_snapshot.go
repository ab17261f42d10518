package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AffiliateSnapshot is an immutable point-in-time aggregate for one affiliate
// of one tenant. Rows are append-only: a new run inserts a new timestamp,
// existing rows are never updated.
type AffiliateSnapshot struct {
	Timestamp   time.Time `gorm:"primaryKey;type:timestamptz"`
	Tenant      string    `gorm:"primaryKey;type:text"`
	Name        string    `gorm:"primaryKey;type:text"`
	BlockNumber uint64    `gorm:"not null"`

	StatusQuotes StatusHistogram `gorm:"type:jsonb;not null"`

	Deposit    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Withdraw   decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Allocated  decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Deallocated decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	TradeVolume             decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	ClosedNotionalValue     decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	LiquidatedNotionalValue decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	PlatformFee             decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	PnlOfClosed     decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	PnlOfLiquidated decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	OpenedCva      decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	OpenedLf       decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	OpenedPartyAmm decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	AccountsCount       int64 `gorm:"not null;default:0"`
	ActiveAccountsCount int64 `gorm:"not null;default:0"`
	UsersCount          int64 `gorm:"not null;default:0"`
	ActiveUsersCount    int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (AffiliateSnapshot) TableName() string {
	return "affiliate_snapshots"
}

// NumericFields exposes every numeric column for day-over-day diffing.
func (s AffiliateSnapshot) NumericFields() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"deposit":                   s.Deposit,
		"withdraw":                  s.Withdraw,
		"allocated":                 s.Allocated,
		"deallocated":               s.Deallocated,
		"trade_volume":              s.TradeVolume,
		"closed_notional_value":     s.ClosedNotionalValue,
		"liquidated_notional_value": s.LiquidatedNotionalValue,
		"platform_fee":              s.PlatformFee,
		"pnl_of_closed":             s.PnlOfClosed,
		"pnl_of_liquidated":         s.PnlOfLiquidated,
		"opened_cva":                s.OpenedCva,
		"opened_lf":                 s.OpenedLf,
		"opened_party_amm":          s.OpenedPartyAmm,
		"accounts_count":            decimal.NewFromInt(s.AccountsCount),
		"active_accounts_count":     decimal.NewFromInt(s.ActiveAccountsCount),
		"users_count":               decimal.NewFromInt(s.UsersCount),
		"active_users_count":        decimal.NewFromInt(s.ActiveUsersCount),
	}
}
