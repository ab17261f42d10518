package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"symmio/internal/client/subgraph"
	"symmio/internal/config"
	"symmio/internal/models"
	"symmio/internal/repository"
)

// stubRepo keys every mirrored entity by primary key, mimicking the database
// upsert semantics. Unused repository methods panic via the embedded nil
// interface.
type stubRepo struct {
	repository.Repository

	users          map[string]models.User
	symbols        map[string]models.Symbol
	accounts       map[string]models.Account
	balanceChanges map[string]models.BalanceChange
	quotes         map[string]models.Quote
	tradeHistories map[string]models.TradeHistory

	rc      *models.RuntimeConfiguration
	rcSaves int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:          map[string]models.User{},
		symbols:        map[string]models.Symbol{},
		accounts:       map[string]models.Account{},
		balanceChanges: map[string]models.BalanceChange{},
		quotes:         map[string]models.Quote{},
		tradeHistories: map[string]models.TradeHistory{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) UpsertUsersTx(ctx context.Context, tx *gorm.DB, items []models.User) error {
	for _, item := range items {
		s.users[item.ID] = item
	}
	return nil
}

func (s *stubRepo) UpsertSymbolsTx(ctx context.Context, tx *gorm.DB, items []models.Symbol) error {
	for _, item := range items {
		s.symbols[item.ID] = item
	}
	return nil
}

func (s *stubRepo) UpsertAccountsTx(ctx context.Context, tx *gorm.DB, items []models.Account) error {
	for _, item := range items {
		s.accounts[item.ID] = item
	}
	return nil
}

func (s *stubRepo) UpsertBalanceChangesTx(ctx context.Context, tx *gorm.DB, items []models.BalanceChange) error {
	for _, item := range items {
		s.balanceChanges[item.ID] = item
	}
	return nil
}

func (s *stubRepo) UpsertQuotesTx(ctx context.Context, tx *gorm.DB, items []models.Quote) error {
	for _, item := range items {
		s.quotes[item.ID] = item
	}
	return nil
}

func (s *stubRepo) UpsertTradeHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.TradeHistory) error {
	for _, item := range items {
		s.tradeHistories[item.ID] = item
	}
	return nil
}

func (s *stubRepo) UpsertDailyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.DailyHistory) error {
	return nil
}

func (s *stubRepo) UpsertWeeklyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.WeeklyHistory) error {
	return nil
}

func (s *stubRepo) UpsertMonthlyHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.MonthlyHistory) error {
	return nil
}

func (s *stubRepo) UpsertTotalHistoriesTx(ctx context.Context, tx *gorm.DB, items []models.TotalHistory) error {
	return nil
}

func (s *stubRepo) GetRuntimeConfiguration(ctx context.Context, tenant string) (*models.RuntimeConfiguration, error) {
	return s.rc, nil
}

func (s *stubRepo) SaveRuntimeConfiguration(ctx context.Context, item *models.RuntimeConfiguration) error {
	copied := *item
	s.rc = &copied
	s.rcSaves++
	return nil
}

// fakeSource serves canned records per entity set and records the issued
// queries.
type fakeSource struct {
	pages   map[string][]subgraph.Record
	failOn  string
	methods []string
	queries []subgraph.Query
}

func (f *fakeSource) LoadAll(ctx context.Context, q subgraph.Query, paginationField string) ([]subgraph.Record, error) {
	f.methods = append(f.methods, q.Method)
	f.queries = append(f.queries, q)
	if q.Method == f.failOn {
		return nil, fmt.Errorf("transport failure on %s", q.Method)
	}
	return f.pages[q.Method], nil
}

type fixedDecimals struct {
	value int32
	calls int
}

func (f *fixedDecimals) Decimals(ctx context.Context) (int32, error) {
	f.calls++
	return f.value, nil
}

func testTenant() config.TenantConfig {
	return config.TenantConfig{
		Name:             "arbitrum",
		DeployTime:       1700000000,
		SnapshotBlockLag: 10,
	}
}

func TestLoadOrCreateRuntimeConfiguration(t *testing.T) {
	repo := newStubRepo()
	decimals := &fixedDecimals{value: 6}
	s := New(repo, &fakeSource{}, decimals, testTenant(), nil)

	rc, err := s.LoadOrCreateRuntimeConfiguration(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if rc.Decimals != 6 || rc.SnapshotBlockLag != 10 {
		t.Fatalf("unexpected config %+v", rc)
	}
	wantDeploy := time.Unix(1700000000, 0).UTC().Add(-72 * time.Hour)
	if !rc.DeployTimestamp.Equal(wantDeploy) {
		t.Fatalf("DeployTimestamp = %v, want backdated %v", rc.DeployTimestamp, wantDeploy)
	}

	// Second call must reuse the stored row, not re-read the chain.
	if _, err := s.LoadOrCreateRuntimeConfiguration(context.Background()); err != nil {
		t.Fatalf("second LoadOrCreate: %v", err)
	}
	if decimals.calls != 1 {
		t.Fatalf("decimals read %d times, want 1", decimals.calls)
	}
}

func TestRunDecodesAndPrefixes(t *testing.T) {
	repo := newStubRepo()
	source := &fakeSource{pages: map[string][]subgraph.Record{
		"users": {{"id": "0xaaa", "timestamp": "1700000100", "transaction": "0xdead"}},
		"balanceChanges": {{
			"id": "bc1", "account": "0xaaa_1", "amount": "1000000000000000000",
			"collateral": "0xusdc", "type": "DEPOSIT",
			"timestamp": "1700000200", "blockNumber": "900",
		}},
	}}
	s := New(repo, source, &fixedDecimals{value: 18}, testTenant(), nil)
	rc := &models.RuntimeConfiguration{Tenant: "arbitrum", LastSyncBlock: 800}

	if err := s.Run(context.Background(), rc, 1000); err != nil {
		t.Fatalf("Run: %v", err)
	}

	user, ok := repo.users["arbitrum_0xaaa"]
	if !ok {
		t.Fatalf("user id not tenant-prefixed: %v", repo.users)
	}
	if !user.Timestamp.Equal(time.Unix(1700000100, 0).UTC()) {
		t.Fatalf("timestamp not converted: %v", user.Timestamp)
	}
	bc, ok := repo.balanceChanges["arbitrum_bc1"]
	if !ok {
		t.Fatalf("balance change missing: %v", repo.balanceChanges)
	}
	if bc.AccountID != "arbitrum_0xaaa_1" {
		t.Fatalf("account reference not prefixed: %s", bc.AccountID)
	}
	if !bc.Amount.Equal(decimal.New(1, 18)) {
		t.Fatalf("amount = %s", bc.Amount)
	}

	// Every query carries the catch-up filter and the block pin.
	for _, q := range source.queries {
		if q.ChangeBlockGTE != 800 {
			t.Fatalf("%s: ChangeBlockGTE = %d, want 800", q.Method, q.ChangeBlockGTE)
		}
		if q.BlockNumber != 1000 {
			t.Fatalf("%s: BlockNumber = %d, want 1000", q.Method, q.BlockNumber)
		}
	}
}

func TestRunSyncsEntitiesInDependencyOrder(t *testing.T) {
	repo := newStubRepo()
	source := &fakeSource{pages: map[string][]subgraph.Record{}}
	s := New(repo, source, &fixedDecimals{value: 18}, testTenant(), nil)

	if err := s.Run(context.Background(), &models.RuntimeConfiguration{}, 100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"users", "symbols", "accounts", "balanceChanges", "quotes",
		"tradeHistories", "dailyHistories", "weeklyHistories",
		"monthlyHistories", "totalHistories",
	}
	if len(source.methods) != len(want) {
		t.Fatalf("synced %v, want %v", source.methods, want)
	}
	for i, method := range want {
		if source.methods[i] != method {
			t.Fatalf("entity %d = %s, want %s", i, source.methods[i], method)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	source := &fakeSource{pages: map[string][]subgraph.Record{
		"users": {{"id": "u1", "timestamp": "1700000100", "transaction": "0x1"}},
	}}
	s := New(repo, source, &fixedDecimals{value: 18}, testTenant(), nil)
	rc := &models.RuntimeConfiguration{Tenant: "arbitrum"}

	if err := s.Run(context.Background(), rc, 100); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Same record again with a changed field: still one row, latest value.
	source.pages["users"] = []subgraph.Record{
		{"id": "u1", "timestamp": "1700000100", "transaction": "0x2"},
	}
	if err := s.Run(context.Background(), rc, 100); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected one user row, got %d", len(repo.users))
	}
	if got := repo.users["arbitrum_u1"].Transaction; got != "0x2" {
		t.Fatalf("transaction = %s, want latest value 0x2", got)
	}
}

func TestCheckpointNotAdvancedOnFailure(t *testing.T) {
	repo := newStubRepo()
	source := &fakeSource{
		pages: map[string][]subgraph.Record{
			"users": {{"id": "u1", "timestamp": "1700000100"}},
		},
		failOn: "quotes",
	}
	s := New(repo, source, &fixedDecimals{value: 18}, testTenant(), nil)
	rc := &models.RuntimeConfiguration{Tenant: "arbitrum", LastSyncBlock: 500}
	repo.rc = rc

	if err := s.Run(context.Background(), rc, 1000); err == nil {
		t.Fatal("expected transport failure to abort the run")
	}
	if rc.LastSyncBlock != 500 {
		t.Fatalf("LastSyncBlock moved to %d on failure", rc.LastSyncBlock)
	}
	if repo.rcSaves != 0 {
		t.Fatalf("checkpoint saved %d times during failed run", repo.rcSaves)
	}

	// The retry starts from the unmoved cursor and completes.
	source.failOn = ""
	if err := s.Run(context.Background(), rc, 1000); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := s.Checkpoint(context.Background(), rc, 1000); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if rc.LastSyncBlock != 1000 || rc.LastSnapshotBlock != 1000 {
		t.Fatalf("checkpoint not advanced: %+v", rc)
	}
	if repo.rc.LastSyncBlock != 1000 {
		t.Fatal("checkpoint not persisted")
	}
}
