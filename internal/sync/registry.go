package sync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"symmio/internal/client/subgraph"
	"symmio/internal/models"
	"symmio/internal/repository"
)

// EntityDescriptor drives the sync of one mirrored entity type: the remote
// entity set name, the pagination cursor field, the remote field projection,
// and the decode-and-upsert step. The registry is a fixed compile-time list,
// ordered so foreign-key parents sync before their children.
type EntityDescriptor struct {
	Method          string
	PaginationField string
	Fields          []string
	Apply           func(ctx context.Context, tx *gorm.DB, repo repository.Repository, tenant string, records []subgraph.Record, logger *zap.Logger) error
}

// Entities lists every mirrored entity type in sync order.
var Entities = []EntityDescriptor{
	{
		Method:          "users",
		PaginationField: "timestamp",
		Fields:          []string{"id", "timestamp", "transaction"},
		Apply:           applyBatch(decodeUser, repository.Repository.UpsertUsersTx),
	},
	{
		Method:          "symbols",
		PaginationField: "timestamp",
		Fields:          []string{"id", "name", "tradingFee", "timestamp"},
		Apply:           applyBatch(decodeSymbol, repository.Repository.UpsertSymbolsTx),
	},
	{
		Method:          "accounts",
		PaginationField: "timestamp",
		Fields: []string{
			"id", "user", "name", "accountSource", "quotesCount", "positionsCount",
			"lastActivityTimestamp", "timestamp", "blockNumber",
		},
		Apply: applyBatch(decodeAccount, repository.Repository.UpsertAccountsTx),
	},
	{
		Method:          "balanceChanges",
		PaginationField: "timestamp",
		Fields: []string{
			"id", "account", "amount", "collateral", "type", "timestamp", "blockNumber",
		},
		Apply: applyBatch(decodeBalanceChange, repository.Repository.UpsertBalanceChangesTx),
	},
	{
		Method:          "quotes",
		PaginationField: "timestamp",
		Fields: []string{
			"id", "account", "symbol", "partyB", "quoteStatus", "positionType",
			"quantity", "closedAmount", "openedPrice", "initialOpenedPrice",
			"averageClosedPrice", "liquidatePrice", "liquidatedSide",
			"cva", "initialCva", "lf", "initialLf", "partyAmm", "initialPartyAmm",
			"tradingFee", "userPaidFunding", "userReceivedFunding",
			"timestamp", "lockTimestamp", "openTimestamp", "closeRequestTimestamp",
			"cancelRequestTimestamp", "cancelCloseRequestTimestamp", "closeTimestamp",
			"cancelTimestamp", "liquidateTimestamp", "expireTimestamp",
			"forceCloseTimestamp", "updateTimestamp", "blockNumber",
		},
		Apply: applyBatch(decodeQuote, repository.Repository.UpsertQuotesTx),
	},
	{
		Method:          "tradeHistories",
		PaginationField: "timestamp",
		Fields: []string{
			"id", "account", "quote", "volume", "quoteStatus", "timestamp", "blockNumber",
		},
		Apply: applyBatch(decodeTradeHistory, repository.Repository.UpsertTradeHistoriesTx),
	},
	{
		Method:          "dailyHistories",
		PaginationField: "timestamp",
		Fields:          historyFields,
		Apply: applyBatch(func(rec subgraph.Record, tenant string) (models.DailyHistory, error) {
			agg, id, err := decodeHistoryAggregates(rec, tenant)
			return models.DailyHistory{ID: id, HistoryAggregates: agg}, err
		}, repository.Repository.UpsertDailyHistoriesTx),
	},
	{
		Method:          "weeklyHistories",
		PaginationField: "timestamp",
		Fields:          historyFields,
		Apply: applyBatch(func(rec subgraph.Record, tenant string) (models.WeeklyHistory, error) {
			agg, id, err := decodeHistoryAggregates(rec, tenant)
			return models.WeeklyHistory{ID: id, HistoryAggregates: agg}, err
		}, repository.Repository.UpsertWeeklyHistoriesTx),
	},
	{
		Method:          "monthlyHistories",
		PaginationField: "timestamp",
		Fields:          historyFields,
		Apply: applyBatch(func(rec subgraph.Record, tenant string) (models.MonthlyHistory, error) {
			agg, id, err := decodeHistoryAggregates(rec, tenant)
			return models.MonthlyHistory{ID: id, HistoryAggregates: agg}, err
		}, repository.Repository.UpsertMonthlyHistoriesTx),
	},
	{
		Method:          "totalHistories",
		PaginationField: "timestamp",
		Fields:          historyFields,
		Apply: applyBatch(func(rec subgraph.Record, tenant string) (models.TotalHistory, error) {
			agg, id, err := decodeHistoryAggregates(rec, tenant)
			return models.TotalHistory{ID: id, HistoryAggregates: agg}, err
		}, repository.Repository.UpsertTotalHistoriesTx),
	},
}

var historyFields = []string{
	"id", "quotesCount", "tradeVolume", "deposit", "withdraw", "allocate",
	"deallocate", "platformFee", "openInterest", "activeUsers", "newUsers",
	"newAccounts", "accountSource", "timestamp",
}

// applyBatch builds an Apply step from a row decoder and the matching batch
// upsert. A row that fails to decode is logged and skipped; it must never
// abort the rest of the page.
func applyBatch[T any](
	decode func(rec subgraph.Record, tenant string) (T, error),
	upsert func(repo repository.Repository, ctx context.Context, tx *gorm.DB, items []T) error,
) func(ctx context.Context, tx *gorm.DB, repo repository.Repository, tenant string, records []subgraph.Record, logger *zap.Logger) error {
	return func(ctx context.Context, tx *gorm.DB, repo repository.Repository, tenant string, records []subgraph.Record, logger *zap.Logger) error {
		items := make([]T, 0, len(records))
		for _, rec := range records {
			item, err := decode(rec, tenant)
			if err != nil {
				logger.Warn("skipping undecodable record",
					zap.String("tenant", tenant),
					zap.String("id", recString(rec, "id")),
					zap.Error(err))
				continue
			}
			items = append(items, item)
		}
		return upsert(repo, ctx, tx, items)
	}
}

func decodeUser(rec subgraph.Record, tenant string) (models.User, error) {
	ts, err := recTime(rec, "timestamp")
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:          prefixID(tenant, recString(rec, "id")),
		Timestamp:   ts,
		Transaction: recString(rec, "transaction"),
		Tenant:      tenant,
	}, nil
}

func decodeSymbol(rec subgraph.Record, tenant string) (models.Symbol, error) {
	fee, err := recDecimal(rec, "tradingFee")
	if err != nil {
		return models.Symbol{}, err
	}
	ts, err := recTime(rec, "timestamp")
	if err != nil {
		return models.Symbol{}, err
	}
	return models.Symbol{
		ID:         prefixID(tenant, recString(rec, "id")),
		Name:       recString(rec, "name"),
		TradingFee: fee,
		Timestamp:  ts,
		Tenant:     tenant,
	}, nil
}

func decodeAccount(rec subgraph.Record, tenant string) (models.Account, error) {
	quotesCount, err := recInt64(rec, "quotesCount")
	if err != nil {
		return models.Account{}, err
	}
	positionsCount, err := recInt64(rec, "positionsCount")
	if err != nil {
		return models.Account{}, err
	}
	lastActivity, err := recTimePtr(rec, "lastActivityTimestamp")
	if err != nil {
		return models.Account{}, err
	}
	ts, err := recTime(rec, "timestamp")
	if err != nil {
		return models.Account{}, err
	}
	block, err := recUint64(rec, "blockNumber")
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{
		ID:                    prefixID(tenant, recString(rec, "id")),
		UserID:                prefixID(tenant, recString(rec, "user")),
		Name:                  recString(rec, "name"),
		AccountSource:         recStringPtr(rec, "accountSource"),
		QuotesCount:           quotesCount,
		PositionsCount:        positionsCount,
		LastActivityTimestamp: lastActivity,
		Timestamp:             ts,
		BlockNumber:           block,
		Tenant:                tenant,
	}, nil
}

func decodeBalanceChange(rec subgraph.Record, tenant string) (models.BalanceChange, error) {
	amount, err := recDecimal(rec, "amount")
	if err != nil {
		return models.BalanceChange{}, err
	}
	ts, err := recTime(rec, "timestamp")
	if err != nil {
		return models.BalanceChange{}, err
	}
	block, err := recUint64(rec, "blockNumber")
	if err != nil {
		return models.BalanceChange{}, err
	}
	return models.BalanceChange{
		ID:          prefixID(tenant, recString(rec, "id")),
		AccountID:   prefixID(tenant, recString(rec, "account")),
		Amount:      amount,
		Collateral:  recString(rec, "collateral"),
		Type:        recString(rec, "type"),
		Timestamp:   ts,
		BlockNumber: block,
		Tenant:      tenant,
	}, nil
}

func decodeQuote(rec subgraph.Record, tenant string) (models.Quote, error) {
	q := models.Quote{
		ID:             prefixID(tenant, recString(rec, "id")),
		AccountID:      prefixID(tenant, recString(rec, "account")),
		SymbolID:       prefixID(tenant, recString(rec, "symbol")),
		PartyB:         recString(rec, "partyB"),
		PositionType:   recString(rec, "positionType"),
		LiquidatedSide: recStringPtr(rec, "liquidatedSide"),
		Tenant:         tenant,
	}
	var err error
	if q.QuoteStatus, err = recInt(rec, "quoteStatus"); err != nil {
		return models.Quote{}, err
	}
	for _, f := range []struct {
		key string
		dst *decimal.Decimal
	}{
		{"quantity", &q.Quantity},
		{"closedAmount", &q.ClosedAmount},
		{"openedPrice", &q.OpenedPrice},
		{"initialOpenedPrice", &q.InitialOpenedPrice},
		{"averageClosedPrice", &q.AverageClosedPrice},
		{"liquidatePrice", &q.LiquidatePrice},
		{"cva", &q.Cva},
		{"initialCva", &q.InitialCva},
		{"lf", &q.Lf},
		{"initialLf", &q.InitialLf},
		{"partyAmm", &q.PartyAmm},
		{"initialPartyAmm", &q.InitialPartyAmm},
		{"tradingFee", &q.TradingFee},
		{"userPaidFunding", &q.UserPaidFunding},
		{"userReceivedFunding", &q.UserReceivedFunding},
	} {
		if *f.dst, err = recDecimal(rec, f.key); err != nil {
			return models.Quote{}, err
		}
	}
	if q.Timestamp, err = recTime(rec, "timestamp"); err != nil {
		return models.Quote{}, err
	}
	for _, f := range []struct {
		key string
		dst **time.Time
	}{
		{"lockTimestamp", &q.LockTimestamp},
		{"openTimestamp", &q.OpenTimestamp},
		{"closeRequestTimestamp", &q.CloseRequestTimestamp},
		{"cancelRequestTimestamp", &q.CancelRequestTimestamp},
		{"cancelCloseRequestTimestamp", &q.CancelCloseRequestTimestamp},
		{"closeTimestamp", &q.CloseTimestamp},
		{"cancelTimestamp", &q.CancelTimestamp},
		{"liquidateTimestamp", &q.LiquidateTimestamp},
		{"expireTimestamp", &q.ExpireTimestamp},
		{"forceCloseTimestamp", &q.ForceCloseTimestamp},
		{"updateTimestamp", &q.UpdateTimestamp},
	} {
		if *f.dst, err = recTimePtr(rec, f.key); err != nil {
			return models.Quote{}, err
		}
	}
	if q.BlockNumber, err = recUint64(rec, "blockNumber"); err != nil {
		return models.Quote{}, err
	}
	return q, nil
}

func decodeTradeHistory(rec subgraph.Record, tenant string) (models.TradeHistory, error) {
	volume, err := recDecimal(rec, "volume")
	if err != nil {
		return models.TradeHistory{}, err
	}
	status, err := recInt(rec, "quoteStatus")
	if err != nil {
		return models.TradeHistory{}, err
	}
	ts, err := recTime(rec, "timestamp")
	if err != nil {
		return models.TradeHistory{}, err
	}
	block, err := recUint64(rec, "blockNumber")
	if err != nil {
		return models.TradeHistory{}, err
	}
	return models.TradeHistory{
		ID:          prefixID(tenant, recString(rec, "id")),
		AccountID:   prefixID(tenant, recString(rec, "account")),
		QuoteID:     prefixID(tenant, recString(rec, "quote")),
		Volume:      volume,
		QuoteStatus: status,
		Timestamp:   ts,
		BlockNumber: block,
		Tenant:      tenant,
	}, nil
}

func decodeHistoryAggregates(rec subgraph.Record, tenant string) (models.HistoryAggregates, string, error) {
	agg := models.HistoryAggregates{
		AccountSource: recStringPtr(rec, "accountSource"),
		Tenant:        tenant,
	}
	var err error
	if agg.QuotesCount, err = recInt64(rec, "quotesCount"); err != nil {
		return agg, "", err
	}
	if agg.ActiveUsers, err = recInt64(rec, "activeUsers"); err != nil {
		return agg, "", err
	}
	if agg.NewUsers, err = recInt64(rec, "newUsers"); err != nil {
		return agg, "", err
	}
	if agg.NewAccounts, err = recInt64(rec, "newAccounts"); err != nil {
		return agg, "", err
	}
	for _, f := range []struct {
		key string
		dst *decimal.Decimal
	}{
		{"tradeVolume", &agg.TradeVolume},
		{"deposit", &agg.Deposit},
		{"withdraw", &agg.Withdraw},
		{"allocate", &agg.Allocate},
		{"deallocate", &agg.Deallocate},
		{"platformFee", &agg.PlatformFee},
		{"openInterest", &agg.OpenInterest},
	} {
		if *f.dst, err = recDecimal(rec, f.key); err != nil {
			return agg, "", err
		}
	}
	if agg.Timestamp, err = recTime(rec, "timestamp"); err != nil {
		return agg, "", err
	}
	return agg, prefixID(tenant, recString(rec, "id")), nil
}
