package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"symmio/internal/models"
)

// Repository is the persistence boundary. Mirrored entities are written only
// by the synchronizer (batch upserts inside one transaction per tenant run);
// snapshot rows are written only by the computators and are append-only.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Mirrored entities, in foreign-key dependency order.
	UpsertUsersTx(ctx context.Context, tx *gorm.DB, items []models.User) error
	UpsertSymbolsTx(ctx context.Context, tx *gorm.DB, items []models.Symbol) error
	UpsertAccountsTx(ctx context.Context, tx *gorm.DB, items []models.Account) error
	UpsertBalanceChangesTx(ctx context.Context, tx *gorm.DB, items []models.BalanceChange) error
	UpsertQuotesTx(ctx context.Context, tx *gorm.DB, items []models.Quote) error
	UpsertTradeHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.TradeHistory) error
	UpsertDailyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.DailyHistory) error
	UpsertWeeklyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.WeeklyHistory) error
	UpsertMonthlyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.MonthlyHistory) error
	UpsertTotalHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.TotalHistory) error

	// Per-tenant durable checkpoint.
	GetRuntimeConfiguration(ctx context.Context, tenant string) (*models.RuntimeConfiguration, error)
	SaveRuntimeConfiguration(ctx context.Context, item *models.RuntimeConfiguration) error
	SaveRuntimeConfigurationTx(ctx context.Context, tx *gorm.DB, item *models.RuntimeConfiguration) error

	// Aggregates consumed by the snapshot computators.
	CountQuotesByStatus(ctx context.Context, params QuoteFilterParams) (models.StatusHistogram, error)
	ListQuotes(ctx context.Context, params QuoteFilterParams) ([]models.Quote, error)
	SumBalanceChanges(ctx context.Context, params BalanceChangeSumParams) (decimal.Decimal, error)
	SumTradeVolume(ctx context.Context, params TradeVolumeParams) (decimal.Decimal, error)
	SumQuoteFunding(ctx context.Context, params QuoteFilterParams) (QuoteFundingSums, error)
	CountAccounts(ctx context.Context, params AccountCountParams) (int64, error)
	CountDistinctUsers(ctx context.Context, params AccountCountParams) (int64, error)
	ListAccounts(ctx context.Context, params AccountListParams) ([]models.Account, error)
	ListSymbols(ctx context.Context, tenant string) ([]models.Symbol, error)

	// Snapshot rows. Insert only; existing rows are never touched.
	InsertAffiliateSnapshot(ctx context.Context, item *models.AffiliateSnapshot) error
	InsertHedgerSnapshot(ctx context.Context, item *models.HedgerSnapshot) error
	InsertHedgerBinanceSnapshot(ctx context.Context, item *models.HedgerBinanceSnapshot) error
	InsertLiquidatorSnapshot(ctx context.Context, item *models.LiquidatorSnapshot) error

	GetLatestAffiliateSnapshot(ctx context.Context, tenant, name string) (*models.AffiliateSnapshot, error)
	GetLatestHedgerSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerSnapshot, error)
	GetLatestHedgerBinanceSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerBinanceSnapshot, error)
	GetLatestLiquidatorSnapshot(ctx context.Context, tenant string) (*models.LiquidatorSnapshot, error)

	// Diff baselines: the last snapshot at or before a boundary, with the
	// earliest row as the first-run fallback. A nil row means none exist.
	GetAffiliateSnapshotBefore(ctx context.Context, tenant, name string, before time.Time) (*models.AffiliateSnapshot, error)
	GetEarliestAffiliateSnapshot(ctx context.Context, tenant, name string) (*models.AffiliateSnapshot, error)
	GetHedgerSnapshotBefore(ctx context.Context, tenant, hedgerName string, before time.Time) (*models.HedgerSnapshot, error)
	GetEarliestHedgerSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerSnapshot, error)
	GetLiquidatorSnapshotBefore(ctx context.Context, tenant string, before time.Time) (*models.LiquidatorSnapshot, error)
	GetEarliestLiquidatorSnapshot(ctx context.Context, tenant string) (*models.LiquidatorSnapshot, error)

	// Per-wallet running gas counters, read-increment-write within one tx.
	GetGasHistoryTx(ctx context.Context, tx *gorm.DB, address, tenant string) (*models.GasHistory, error)
	SaveGasHistoryTx(ctx context.Context, tx *gorm.DB, item *models.GasHistory) error
}

// QuoteFilterParams narrows quote queries. Zero values mean "no filter";
// MaxBlock and After carry the block-consistency and deploy-time bounds every
// computator applies.
type QuoteFilterParams struct {
	Tenant        string
	Statuses      []int
	PartyB        string
	AccountSource string
	MaxBlock      uint64
	After         time.Time
}

// QuoteFundingSums is the paid/received funding pair summed over a quote set.
type QuoteFundingSums struct {
	Paid     decimal.Decimal
	Received decimal.Decimal
}

type BalanceChangeSumParams struct {
	Tenant        string
	Type          string
	AccountSource string
	AccountID     string
	MaxBlock      uint64
	After         time.Time
}

type TradeVolumeParams struct {
	Tenant        string
	AccountSource string
	PartyB        string
	QuoteStatuses []int
	MaxBlock      uint64
	After         time.Time
}

type AccountCountParams struct {
	Tenant        string
	AccountSource string
	MaxBlock      uint64
	After         time.Time
	// ActiveSince filters on last activity; zero means count all.
	ActiveSince time.Time
}

type AccountListParams struct {
	Tenant        string
	AccountSource string
	MaxBlock      uint64
	After         time.Time
}
