package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote status codes. Transitions are monotonic per the protocol state
// machine; the synchronizer trusts the remote source and overwrites local
// state, computators filter by these codes.
const (
	QuoteStatusPending            = 0
	QuoteStatusLocked             = 1
	QuoteStatusCancelPending      = 2
	QuoteStatusCanceled           = 3
	QuoteStatusOpened             = 4
	QuoteStatusClosePending       = 5
	QuoteStatusCancelClosePending = 6
	QuoteStatusClosed             = 7
	QuoteStatusLiquidated         = 8
	QuoteStatusExpired            = 9
)

// Position types, stored as strings the way the remote source emits them.
const (
	PositionTypeLong  = "0"
	PositionTypeShort = "1"
)

// OpenStatuses are the codes under which a quote holds an open position
// (opened, close-pending, cancel-close-pending).
var OpenStatuses = []int{QuoteStatusOpened, QuoteStatusClosePending, QuoteStatusCancelClosePending}

// Quote is the central trading object: one row per position/order lifecycle.
// averageClosedPrice and liquidation fields are only meaningful once
// quoteStatus reaches 7/8. closedAmount never exceeds quantity.
type Quote struct {
	ID                 string          `gorm:"primaryKey;type:text"`
	AccountID          string          `gorm:"type:text;not null;index"`
	SymbolID           string          `gorm:"type:text;index"`
	PartyB             string          `gorm:"type:text;index"`
	QuoteStatus        int             `gorm:"not null;index"`
	PositionType       string          `gorm:"type:text;not null"`
	Quantity           decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	ClosedAmount       decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	OpenedPrice        decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	InitialOpenedPrice decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	AverageClosedPrice decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	LiquidatePrice     decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	LiquidatedSide     *string         `gorm:"type:text"`
	Cva                decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	InitialCva         decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Lf                 decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	InitialLf          decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	PartyAmm           decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	InitialPartyAmm    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	TradingFee         decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	UserPaidFunding    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	UserReceivedFunding decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	// One column per state transition; nil until the transition happens.
	Timestamp                   time.Time  `gorm:"type:timestamptz;not null;index"`
	LockTimestamp               *time.Time `gorm:"type:timestamptz"`
	OpenTimestamp               *time.Time `gorm:"type:timestamptz"`
	CloseRequestTimestamp       *time.Time `gorm:"type:timestamptz"`
	CancelRequestTimestamp      *time.Time `gorm:"type:timestamptz"`
	CancelCloseRequestTimestamp *time.Time `gorm:"type:timestamptz"`
	CloseTimestamp              *time.Time `gorm:"type:timestamptz"`
	CancelTimestamp             *time.Time `gorm:"type:timestamptz"`
	LiquidateTimestamp          *time.Time `gorm:"type:timestamptz"`
	ExpireTimestamp             *time.Time `gorm:"type:timestamptz"`
	ForceCloseTimestamp         *time.Time `gorm:"type:timestamptz"`
	UpdateTimestamp             *time.Time `gorm:"type:timestamptz"`

	BlockNumber uint64 `gorm:"not null;index"`
	Tenant      string `gorm:"type:text;not null;index"`
}

func (Quote) TableName() string {
	return "quotes"
}
