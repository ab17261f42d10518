package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"symmio/internal/models"
	"symmio/internal/repository"
)

func TestDiffNumericFields(t *testing.T) {
	old := map[string]decimal.Decimal{
		"deposit":  decimal.New(100, 18),
		"withdraw": decimal.New(40, 18),
	}
	new := map[string]decimal.Decimal{
		"deposit":  decimal.New(130, 18),
		"withdraw": decimal.New(40, 18),
	}
	diffs := DiffNumericFields(old, new)
	if want := decimal.New(30, 18); !diffs["deposit"].Delta.Equal(want) {
		t.Fatalf("deposit delta = %s, want %s", diffs["deposit"].Delta, want)
	}
	if !diffs["withdraw"].Delta.IsZero() {
		t.Fatalf("withdraw delta = %s, want 0", diffs["withdraw"].Delta)
	}
}

func TestDiffNumericFieldsNoBaseline(t *testing.T) {
	new := map[string]decimal.Decimal{"deposit": decimal.New(130, 18)}
	diffs := DiffNumericFields(nil, new)
	d := diffs["deposit"]
	if !d.NoPrior {
		t.Fatal("expected NoPrior with nil baseline")
	}
	if !d.Delta.Equal(d.New) {
		t.Fatalf("delta = %s, want the new value %s", d.Delta, d.New)
	}
}

func TestDiffHistogram(t *testing.T) {
	old := models.StatusHistogram{"4": 3, "7": 10, "9": 1}
	new := models.StatusHistogram{"4": 5, "7": 12}
	diff := DiffHistogram(old, new)
	if diff["4"] != 2 || diff["7"] != 2 {
		t.Fatalf("diff = %v", diff)
	}
	if diff["9"] != -1 {
		t.Fatalf("code only in baseline must diff negative, got %d", diff["9"])
	}
}

func TestDiffLiquidatorStates(t *testing.T) {
	old := models.LiquidatorStates{
		{Address: "0xa", Balance: decimal.New(5, 18), Allocated: decimal.New(1, 18)},
	}
	new := models.LiquidatorStates{
		{Address: "0xb", Balance: decimal.New(2, 18)},
		{Address: "0xa", Balance: decimal.New(4, 18), Allocated: decimal.New(1, 18)},
	}
	diffs := DiffLiquidatorStates(old, new)
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs", len(diffs))
	}
	if diffs[0].Address != "0xa" || !diffs[0].Balance.Equal(decimal.New(-1, 18)) {
		t.Fatalf("0xa diff = %+v", diffs[0])
	}
	// New wallet diffs against zero.
	if diffs[1].Address != "0xb" || !diffs[1].Balance.Equal(decimal.New(2, 18)) {
		t.Fatalf("0xb diff = %+v", diffs[1])
	}
}

func TestRatioPercentZeroDenominator(t *testing.T) {
	if _, ok := RatioPercent(decimal.New(1, 18), decimal.Zero); ok {
		t.Fatal("zero denominator must report not-ok")
	}
	pct, ok := RatioPercent(decimal.NewFromInt(50), decimal.NewFromInt(200))
	if !ok || !pct.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("pct = %s ok = %v", pct, ok)
	}
}

func TestIsEndOfDay(t *testing.T) {
	interval := 5 * time.Minute
	cases := []struct {
		at   string
		want bool
	}{
		{"2026-02-10T23:58:00Z", true},
		{"2026-02-10T23:59:30Z", true},
		{"2026-02-11T00:02:00Z", true},
		{"2026-02-10T12:00:00Z", false},
		{"2026-02-10T23:50:00Z", false},
	}
	for _, c := range cases {
		now, err := time.Parse(time.RFC3339, c.at)
		if err != nil {
			t.Fatal(err)
		}
		if got := IsEndOfDay(now, interval); got != c.want {
			t.Fatalf("IsEndOfDay(%s) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestThrottle(t *testing.T) {
	now := time.Unix(1700000000, 0)
	th := NewThrottle(time.Hour).WithNow(func() time.Time { return now })

	if !th.Allow("upnl") {
		t.Fatal("first alert must pass")
	}
	now = now.Add(30 * time.Minute)
	if th.Allow("upnl") {
		t.Fatal("repeat within the interval must be throttled")
	}
	if !th.Allow("funding") {
		t.Fatal("throttle state is per indicator")
	}
	now = now.Add(31 * time.Minute)
	if !th.Allow("upnl") {
		t.Fatal("alert must pass once the interval elapsed")
	}
}

type reportRepo struct {
	repository.Repository

	before   *models.AffiliateSnapshot
	earliest *models.AffiliateSnapshot

	beforeAsked time.Time
}

func (r *reportRepo) GetAffiliateSnapshotBefore(ctx context.Context, tenant, name string, before time.Time) (*models.AffiliateSnapshot, error) {
	r.beforeAsked = before
	return r.before, nil
}

func (r *reportRepo) GetEarliestAffiliateSnapshot(ctx context.Context, tenant, name string) (*models.AffiliateSnapshot, error) {
	return r.earliest, nil
}

type captureNotifier struct{ texts []string }

func (n *captureNotifier) Notify(ctx context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

func TestAffiliateReportAgainstPrevMidnight(t *testing.T) {
	baseline := &models.AffiliateSnapshot{
		Tenant: "base", Name: "frontend",
		Deposit:      decimal.New(100, 18),
		StatusQuotes: models.StatusHistogram{"7": 1},
	}
	repo := &reportRepo{before: baseline}
	now := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	r := NewReporter(repo, nil, "base", 5*time.Minute, nil).
		WithNow(func() time.Time { return now })
	text, err := r.AffiliateReport(context.Background(), &models.AffiliateSnapshot{
		Tenant: "base", Name: "frontend", BlockNumber: 900,
		Deposit:      decimal.New(130, 18),
		StatusQuotes: models.StatusHistogram{"7": 3},
	})
	if err != nil {
		t.Fatalf("AffiliateReport: %v", err)
	}

	wantBoundary := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	if !repo.beforeAsked.Equal(wantBoundary) {
		t.Fatalf("baseline boundary = %s, want %s", repo.beforeAsked, wantBoundary)
	}
	if !strings.Contains(text, "deposit: 130000000000000000000 (+30000000000000000000)") {
		t.Fatalf("deposit line missing:\n%s", text)
	}
	if !strings.Contains(text, "status 7: +2") {
		t.Fatalf("histogram line missing:\n%s", text)
	}
	if strings.Contains(text, "no prior snapshot") {
		t.Fatalf("baseline present, absolute marker unexpected:\n%s", text)
	}
}

func TestAffiliateReportFallsBackToEarliest(t *testing.T) {
	repo := &reportRepo{earliest: &models.AffiliateSnapshot{
		Tenant: "base", Name: "frontend",
		Deposit: decimal.New(100, 18),
	}}
	now := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)

	r := NewReporter(repo, nil, "base", 5*time.Minute, nil).
		WithNow(func() time.Time { return now })
	text, err := r.AffiliateReport(context.Background(), &models.AffiliateSnapshot{
		Tenant: "base", Name: "frontend",
		Deposit: decimal.New(130, 18),
	})
	if err != nil {
		t.Fatalf("AffiliateReport: %v", err)
	}
	if !strings.Contains(text, "(+30000000000000000000)") {
		t.Fatalf("earliest fallback not applied:\n%s", text)
	}
}

func TestAlertThrottledDelivery(t *testing.T) {
	notifier := &captureNotifier{}
	now := time.Unix(1700000000, 0)
	r := NewReporter(&reportRepo{}, notifier, "base", 5*time.Minute, nil).
		WithNow(func() time.Time { return now })

	r.Alert(context.Background(), "sync-failure", "first")
	r.Alert(context.Background(), "sync-failure", "second")
	if len(notifier.texts) != 1 || notifier.texts[0] != "first" {
		t.Fatalf("texts = %v", notifier.texts)
	}
}
