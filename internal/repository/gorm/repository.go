// Package gormrepository is the Postgres implementation of the repository
// boundary.
package gormrepository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"symmio/internal/models"
	"symmio/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- mirrored entities ------------------------------------------------------

// Remote records are upserted wholesale: on primary-key conflict every column
// is overwritten, the remote source being ground truth.

func upsertAll[T any](ctx context.Context, tx *gorm.DB, items []T) error {
	if len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}), items, 200)
}

func (s *Store) UpsertUsersTx(ctx context.Context, tx *gorm.DB, items []models.User) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertSymbolsTx(ctx context.Context, tx *gorm.DB, items []models.Symbol) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertAccountsTx(ctx context.Context, tx *gorm.DB, items []models.Account) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertBalanceChangesTx(ctx context.Context, tx *gorm.DB, items []models.BalanceChange) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertQuotesTx(ctx context.Context, tx *gorm.DB, items []models.Quote) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertTradeHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.TradeHistory) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertDailyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.DailyHistory) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertWeeklyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.WeeklyHistory) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertMonthlyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.MonthlyHistory) error {
	return upsertAll(ctx, tx, items)
}

func (s *Store) UpsertTotalHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.TotalHistory) error {
	return upsertAll(ctx, tx, items)
}

// --- runtime configuration --------------------------------------------------

func (s *Store) GetRuntimeConfiguration(ctx context.Context, tenant string) (*models.RuntimeConfiguration, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.RuntimeConfiguration
	err := s.db.WithContext(ctx).Where("tenant = ?", tenant).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveRuntimeConfiguration(ctx context.Context, item *models.RuntimeConfiguration) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}},
		UpdateAll: true,
	}).Create(item).Error
}

func (s *Store) SaveRuntimeConfigurationTx(ctx context.Context, tx *gorm.DB, item *models.RuntimeConfiguration) error {
	if item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}},
		UpdateAll: true,
	}).Create(item).Error
}

// --- snapshot aggregates ----------------------------------------------------

func applyQuoteFilter(query *gorm.DB, params repository.QuoteFilterParams) *gorm.DB {
	query = query.Where("tenant = ?", params.Tenant)
	if len(params.Statuses) > 0 {
		query = query.Where("quote_status IN ?", params.Statuses)
	}
	if params.PartyB != "" {
		query = query.Where("LOWER(party_b) = LOWER(?)", params.PartyB)
	}
	if params.AccountSource != "" {
		query = query.Where(
			"account_id IN (?)",
			query.Session(&gorm.Session{NewDB: true}).
				Model(&models.Account{}).
				Select("id").
				Where("tenant = ?", params.Tenant).
				Where("LOWER(account_source) = LOWER(?)", params.AccountSource),
		)
	}
	if params.MaxBlock > 0 {
		query = query.Where("block_number <= ?", params.MaxBlock)
	}
	if !params.After.IsZero() {
		query = query.Where("timestamp > ?", params.After.UTC())
	}
	return query
}

func (s *Store) CountQuotesByStatus(ctx context.Context, params repository.QuoteFilterParams) (models.StatusHistogram, error) {
	if s == nil || s.db == nil {
		return models.StatusHistogram{}, nil
	}
	var rows []struct {
		QuoteStatus int
		Count       int64
	}
	query := applyQuoteFilter(s.db.WithContext(ctx).Model(&models.Quote{}), params)
	if err := query.Select("quote_status, COUNT(*) AS count").
		Group("quote_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	histogram := make(models.StatusHistogram, len(rows))
	for _, row := range rows {
		histogram.Set(row.QuoteStatus, row.Count)
	}
	return histogram, nil
}

func (s *Store) ListQuotes(ctx context.Context, params repository.QuoteFilterParams) ([]models.Quote, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Quote
	query := applyQuoteFilter(s.db.WithContext(ctx).Model(&models.Quote{}), params)
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SumBalanceChanges(ctx context.Context, params repository.BalanceChangeSumParams) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.BalanceChange{}).
		Where("tenant = ?", params.Tenant)
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.AccountID != "" {
		query = query.Where("LOWER(account_id) = LOWER(?)", params.AccountID)
	}
	if params.AccountSource != "" {
		query = query.Where(
			"account_id IN (?)",
			query.Session(&gorm.Session{NewDB: true}).
				Model(&models.Account{}).
				Select("id").
				Where("tenant = ?", params.Tenant).
				Where("LOWER(account_source) = LOWER(?)", params.AccountSource),
		)
	}
	if params.MaxBlock > 0 {
		query = query.Where("block_number <= ?", params.MaxBlock)
	}
	if !params.After.IsZero() {
		query = query.Where("timestamp > ?", params.After.UTC())
	}
	var out decimal.Decimal
	if err := query.Select("COALESCE(SUM(amount), 0)").Scan(&out).Error; err != nil {
		return decimal.Zero, err
	}
	return out, nil
}

func (s *Store) SumTradeVolume(ctx context.Context, params repository.TradeVolumeParams) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	query := s.db.WithContext(ctx).
		Table("trade_histories AS th").
		Where("th.tenant = ?", params.Tenant)
	if len(params.QuoteStatuses) > 0 {
		query = query.Where("th.quote_status IN ?", params.QuoteStatuses)
	}
	if params.AccountSource != "" {
		query = query.
			Joins("JOIN accounts AS a ON a.id = th.account_id").
			Where("LOWER(a.account_source) = LOWER(?)", params.AccountSource)
	}
	if params.PartyB != "" {
		query = query.
			Joins("JOIN quotes AS q ON q.id = th.quote_id").
			Where("LOWER(q.party_b) = LOWER(?)", params.PartyB)
	}
	if params.MaxBlock > 0 {
		query = query.Where("th.block_number <= ?", params.MaxBlock)
	}
	if !params.After.IsZero() {
		query = query.Where("th.timestamp > ?", params.After.UTC())
	}
	var out decimal.Decimal
	if err := query.Select("COALESCE(SUM(th.volume), 0)").Scan(&out).Error; err != nil {
		return decimal.Zero, err
	}
	return out, nil
}

func (s *Store) SumQuoteFunding(ctx context.Context, params repository.QuoteFilterParams) (repository.QuoteFundingSums, error) {
	if s == nil || s.db == nil {
		return repository.QuoteFundingSums{Paid: decimal.Zero, Received: decimal.Zero}, nil
	}
	var row struct {
		Paid     decimal.Decimal
		Received decimal.Decimal
	}
	query := applyQuoteFilter(s.db.WithContext(ctx).Model(&models.Quote{}), params)
	err := query.Select(`
		COALESCE(SUM(user_paid_funding), 0) AS paid,
		COALESCE(SUM(user_received_funding), 0) AS received
	`).Scan(&row).Error
	if err != nil {
		return repository.QuoteFundingSums{}, err
	}
	return repository.QuoteFundingSums{Paid: row.Paid, Received: row.Received}, nil
}

func applyAccountFilter(query *gorm.DB, params repository.AccountCountParams) *gorm.DB {
	query = query.Where("tenant = ?", params.Tenant)
	if params.AccountSource != "" {
		query = query.Where("LOWER(account_source) = LOWER(?)", params.AccountSource)
	}
	if params.MaxBlock > 0 {
		query = query.Where("block_number <= ?", params.MaxBlock)
	}
	if !params.After.IsZero() {
		query = query.Where("timestamp > ?", params.After.UTC())
	}
	if !params.ActiveSince.IsZero() {
		query = query.Where("last_activity_timestamp >= ?", params.ActiveSince.UTC())
	}
	return query
}

func (s *Store) CountAccounts(ctx context.Context, params repository.AccountCountParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyAccountFilter(s.db.WithContext(ctx).Model(&models.Account{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CountDistinctUsers(ctx context.Context, params repository.AccountCountParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyAccountFilter(s.db.WithContext(ctx).Model(&models.Account{}), params)
	if err := query.Distinct("user_id").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListAccounts(ctx context.Context, params repository.AccountListParams) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("tenant = ?", params.Tenant)
	if params.AccountSource != "" {
		query = query.Where("LOWER(account_source) = LOWER(?)", params.AccountSource)
	}
	if params.MaxBlock > 0 {
		query = query.Where("block_number <= ?", params.MaxBlock)
	}
	if !params.After.IsZero() {
		query = query.Where("timestamp > ?", params.After.UTC())
	}
	var items []models.Account
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSymbols(ctx context.Context, tenant string) ([]models.Symbol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Symbol
	if err := s.db.WithContext(ctx).
		Model(&models.Symbol{}).
		Where("tenant = ?", tenant).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- snapshots --------------------------------------------------------------

func (s *Store) InsertAffiliateSnapshot(ctx context.Context, item *models.AffiliateSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) InsertHedgerSnapshot(ctx context.Context, item *models.HedgerSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) InsertHedgerBinanceSnapshot(ctx context.Context, item *models.HedgerBinanceSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) InsertLiquidatorSnapshot(ctx context.Context, item *models.LiquidatorSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func firstSnapshot[T any](db *gorm.DB, order string, conds ...any) (*T, error) {
	var item T
	err := db.Order(order).First(&item, conds...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetLatestAffiliateSnapshot(ctx context.Context, tenant, name string) (*models.AffiliateSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.AffiliateSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ? AND name = ?", tenant, name)
}

func (s *Store) GetLatestHedgerSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.HedgerSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ? AND hedger_name = ?", tenant, hedgerName)
}

func (s *Store) GetLatestHedgerBinanceSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerBinanceSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.HedgerBinanceSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ? AND hedger_name = ?", tenant, hedgerName)
}

func (s *Store) GetLatestLiquidatorSnapshot(ctx context.Context, tenant string) (*models.LiquidatorSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.LiquidatorSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ?", tenant)
}

func (s *Store) GetAffiliateSnapshotBefore(ctx context.Context, tenant, name string, before time.Time) (*models.AffiliateSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.AffiliateSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ? AND name = ? AND timestamp <= ?", tenant, name, before.UTC())
}

func (s *Store) GetEarliestAffiliateSnapshot(ctx context.Context, tenant, name string) (*models.AffiliateSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.AffiliateSnapshot](s.db.WithContext(ctx),
		"timestamp asc", "tenant = ? AND name = ?", tenant, name)
}

func (s *Store) GetHedgerSnapshotBefore(ctx context.Context, tenant, hedgerName string, before time.Time) (*models.HedgerSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.HedgerSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ? AND hedger_name = ? AND timestamp <= ?", tenant, hedgerName, before.UTC())
}

func (s *Store) GetEarliestHedgerSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.HedgerSnapshot](s.db.WithContext(ctx),
		"timestamp asc", "tenant = ? AND hedger_name = ?", tenant, hedgerName)
}

func (s *Store) GetLiquidatorSnapshotBefore(ctx context.Context, tenant string, before time.Time) (*models.LiquidatorSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.LiquidatorSnapshot](s.db.WithContext(ctx),
		"timestamp desc", "tenant = ? AND timestamp <= ?", tenant, before.UTC())
}

func (s *Store) GetEarliestLiquidatorSnapshot(ctx context.Context, tenant string) (*models.LiquidatorSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstSnapshot[models.LiquidatorSnapshot](s.db.WithContext(ctx),
		"timestamp asc", "tenant = ?", tenant)
}

// --- gas history ------------------------------------------------------------

func (s *Store) GetGasHistoryTx(ctx context.Context, tx *gorm.DB, address, tenant string) (*models.GasHistory, error) {
	var item models.GasHistory
	err := tx.WithContext(ctx).
		Where("address = ? AND tenant = ?", address, tenant).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveGasHistoryTx(ctx context.Context, tx *gorm.DB, item *models.GasHistory) error {
	if item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}, {Name: "tenant"}},
		UpdateAll: true,
	}).Create(item).Error
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}
