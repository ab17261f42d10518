package db

import (
	"symmio/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		// Mirrored entities, in FK dependency order.
		&models.User{},
		&models.Symbol{},
		&models.Account{},
		&models.BalanceChange{},
		&models.Quote{},
		&models.TradeHistory{},
		&models.DailyHistory{},
		&models.WeeklyHistory{},
		&models.MonthlyHistory{},
		&models.TotalHistory{},
		// Checkpoints and derived state.
		&models.RuntimeConfiguration{},
		&models.AffiliateSnapshot{},
		&models.HedgerSnapshot{},
		&models.HedgerBinanceSnapshot{},
		&models.LiquidatorSnapshot{},
		&models.GasHistory{},
	); err != nil {
		return err
	}

	// Snapshot tables are time-partitioned when TimescaleDB is installed;
	// plain Postgres still works, just without partition pruning.
	for _, table := range []string{
		"affiliate_snapshots",
		"hedger_snapshots",
		"hedger_binance_snapshots",
		"liquidator_snapshots",
	} {
		db.Gorm.Exec(
			"SELECT create_hypertable(?, 'timestamp', if_not_exists => TRUE, migrate_data => TRUE)",
			table,
		)
	}
	return nil
}
