package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// HedgerSnapshot captures one hedger's on-chain exposure at a block height.
type HedgerSnapshot struct {
	Timestamp  time.Time `gorm:"primaryKey;type:timestamptz"`
	Tenant     string    `gorm:"primaryKey;type:text"`
	HedgerName string    `gorm:"primaryKey;type:text"`

	BlockNumber uint64 `gorm:"not null"`

	Upnl               decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	PnlOfClosed        decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	PnlOfLiquidated    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	ContractAllocated  decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	FundingPaid        decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	FundingReceived    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	ClosedNotionalValue decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	OpenQuotesCount int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (HedgerSnapshot) TableName() string {
	return "hedger_snapshots"
}

func (s HedgerSnapshot) NumericFields() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"upnl":                  s.Upnl,
		"pnl_of_closed":         s.PnlOfClosed,
		"pnl_of_liquidated":     s.PnlOfLiquidated,
		"contract_allocated":    s.ContractAllocated,
		"funding_paid":          s.FundingPaid,
		"funding_received":      s.FundingReceived,
		"closed_notional_value": s.ClosedNotionalValue,
		"open_quotes_count":     decimal.NewFromInt(s.OpenQuotesCount),
	}
}

// HedgerBinanceSnapshot mirrors the hedger's exchange sub-account state.
// Written only when the snapshot block is live; an old block cannot be paired
// with current exchange balances, so all fields stay zero in that case.
type HedgerBinanceSnapshot struct {
	Timestamp  time.Time `gorm:"primaryKey;type:timestamptz"`
	Tenant     string    `gorm:"primaryKey;type:text"`
	HedgerName string    `gorm:"primaryKey;type:text"`

	TotalMarginBalance decimal.Decimal `gorm:"type:numeric(40,10);not null"`
	TotalWalletBalance decimal.Decimal `gorm:"type:numeric(40,10);not null"`
	AvailableBalance   decimal.Decimal `gorm:"type:numeric(40,10);not null"`
	Upnl               decimal.Decimal `gorm:"type:numeric(40,10);not null"`
	MaintMargin        decimal.Decimal `gorm:"type:numeric(40,10);not null"`

	// Raw keeps the exchange payload as returned, for reconciliation when a
	// parsed column looks off.
	Raw datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (HedgerBinanceSnapshot) TableName() string {
	return "hedger_binance_snapshots"
}

func (s HedgerBinanceSnapshot) NumericFields() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"total_margin_balance": s.TotalMarginBalance,
		"total_wallet_balance": s.TotalWalletBalance,
		"available_balance":    s.AvailableBalance,
		"upnl":                 s.Upnl,
		"maint_margin":         s.MaintMargin,
	}
}
