package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"symmio/internal/models"
	"symmio/internal/repository"
)

// Notifier delivers plain alert text to the external channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Reporter renders day-over-day snapshot reports for one tenant and pushes
// alerts through the notifier, throttled per indicator.
type Reporter struct {
	repo          repository.Repository
	notifier      Notifier
	tenant        string
	fetchInterval time.Duration
	throttle      *Throttle
	now           func() time.Time
	logger        *zap.Logger
}

func NewReporter(repo repository.Repository, notifier Notifier, tenant string, fetchInterval time.Duration, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		repo:          repo,
		notifier:      notifier,
		tenant:        tenant,
		fetchInterval: fetchInterval,
		throttle:      NewThrottle(time.Hour),
		now:           time.Now,
		logger:        logger,
	}
}

// WithNow overrides the reporter's and throttle's clock. For tests.
func (r *Reporter) WithNow(now func() time.Time) *Reporter {
	r.now = now
	r.throttle.WithNow(now)
	return r
}

// AffiliateReport diffs the given snapshot against the last row before the
// previous UTC midnight, falling back to the earliest row when no such
// baseline exists.
func (r *Reporter) AffiliateReport(ctx context.Context, snap *models.AffiliateSnapshot) (string, error) {
	baseline, err := r.affiliateBaseline(ctx, snap.Name)
	if err != nil {
		return "", err
	}
	var oldFields map[string]decimal.Decimal
	var oldHistogram models.StatusHistogram
	if baseline != nil {
		oldFields = baseline.NumericFields()
		oldHistogram = baseline.StatusQuotes
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] affiliate %s @ block %d\n", r.tenant, snap.Name, snap.BlockNumber)
	if baseline == nil {
		b.WriteString("no prior snapshot, values are absolute\n")
	}
	if IsEndOfDay(r.now(), r.fetchInterval) {
		b.WriteString("end of day\n")
	}
	writeFieldDiffs(&b, DiffNumericFields(oldFields, snap.NumericFields()))
	writeHistogramDiff(&b, DiffHistogram(oldHistogram, snap.StatusQuotes))
	return b.String(), nil
}

func (r *Reporter) affiliateBaseline(ctx context.Context, name string) (*models.AffiliateSnapshot, error) {
	baseline, err := r.repo.GetAffiliateSnapshotBefore(ctx, r.tenant, name, prevUTCMidnight(r.now()))
	if err != nil {
		return nil, fmt.Errorf("affiliate baseline: %w", err)
	}
	if baseline != nil {
		return baseline, nil
	}
	earliest, err := r.repo.GetEarliestAffiliateSnapshot(ctx, r.tenant, name)
	if err != nil {
		return nil, fmt.Errorf("earliest affiliate snapshot: %w", err)
	}
	return earliest, nil
}

// HedgerReport diffs a hedger snapshot the same way, adding the exposure
// mismatch ratio between contract allocation and open-book upnl.
func (r *Reporter) HedgerReport(ctx context.Context, snap *models.HedgerSnapshot) (string, error) {
	baseline, err := r.hedgerBaseline(ctx, snap.HedgerName)
	if err != nil {
		return "", err
	}
	var oldFields map[string]decimal.Decimal
	if baseline != nil {
		oldFields = baseline.NumericFields()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] hedger %s @ block %d\n", r.tenant, snap.HedgerName, snap.BlockNumber)
	if baseline == nil {
		b.WriteString("no prior snapshot, values are absolute\n")
	}
	writeFieldDiffs(&b, DiffNumericFields(oldFields, snap.NumericFields()))
	if pct, ok := RatioPercent(snap.Upnl, snap.ContractAllocated); ok {
		fmt.Fprintf(&b, "upnl/allocated: %s%%\n", pct.StringFixed(2))
	} else {
		b.WriteString("upnl/allocated: n/a\n")
	}
	return b.String(), nil
}

func (r *Reporter) hedgerBaseline(ctx context.Context, hedgerName string) (*models.HedgerSnapshot, error) {
	baseline, err := r.repo.GetHedgerSnapshotBefore(ctx, r.tenant, hedgerName, prevUTCMidnight(r.now()))
	if err != nil {
		return nil, fmt.Errorf("hedger baseline: %w", err)
	}
	if baseline != nil {
		return baseline, nil
	}
	earliest, err := r.repo.GetEarliestHedgerSnapshot(ctx, r.tenant, hedgerName)
	if err != nil {
		return nil, fmt.Errorf("earliest hedger snapshot: %w", err)
	}
	return earliest, nil
}

// LiquidatorReport diffs wallet states by address on top of the totals.
func (r *Reporter) LiquidatorReport(ctx context.Context, snap *models.LiquidatorSnapshot) (string, error) {
	baseline, err := r.liquidatorBaseline(ctx)
	if err != nil {
		return "", err
	}
	var oldFields map[string]decimal.Decimal
	var oldStates models.LiquidatorStates
	if baseline != nil {
		oldFields = baseline.NumericFields()
		oldStates = baseline.States
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] liquidators @ block %d\n", r.tenant, snap.BlockNumber)
	if baseline == nil {
		b.WriteString("no prior snapshot, values are absolute\n")
	}
	writeFieldDiffs(&b, DiffNumericFields(oldFields, snap.NumericFields()))
	for _, d := range DiffLiquidatorStates(oldStates, snap.States) {
		fmt.Fprintf(&b, "%s: balance %s, allocated %s, withdraw %s\n",
			d.Address, signed(d.Balance), signed(d.Allocated), signed(d.Withdraw))
	}
	return b.String(), nil
}

func (r *Reporter) liquidatorBaseline(ctx context.Context) (*models.LiquidatorSnapshot, error) {
	baseline, err := r.repo.GetLiquidatorSnapshotBefore(ctx, r.tenant, prevUTCMidnight(r.now()))
	if err != nil {
		return nil, fmt.Errorf("liquidator baseline: %w", err)
	}
	if baseline != nil {
		return baseline, nil
	}
	earliest, err := r.repo.GetEarliestLiquidatorSnapshot(ctx, r.tenant)
	if err != nil {
		return nil, fmt.Errorf("earliest liquidator snapshot: %w", err)
	}
	return earliest, nil
}

// Alert pushes text through the notifier unless the indicator fired too
// recently. Delivery failures are logged, never retried here.
func (r *Reporter) Alert(ctx context.Context, indicator, text string) {
	if r.notifier == nil {
		return
	}
	if !r.throttle.Allow(indicator) {
		r.logger.Debug("alert throttled",
			zap.String("tenant", r.tenant),
			zap.String("indicator", indicator))
		return
	}
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.logger.Warn("alert delivery failed",
			zap.String("tenant", r.tenant),
			zap.String("indicator", indicator),
			zap.Error(err))
	}
}

func writeFieldDiffs(b *strings.Builder, diffs map[string]FieldDiff) {
	names := make([]string, 0, len(diffs))
	for name := range diffs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := diffs[name]
		if d.Delta.IsZero() && !d.NoPrior {
			continue
		}
		fmt.Fprintf(b, "%s: %s (%s)\n", name, d.New, signed(d.Delta))
	}
}

func writeHistogramDiff(b *strings.Builder, diff map[string]int64) {
	codes := make([]string, 0, len(diff))
	for code := range diff {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if diff[code] == 0 {
			continue
		}
		fmt.Fprintf(b, "status %s: %+d\n", code, diff[code])
	}
}

func signed(d decimal.Decimal) string {
	if d.Sign() > 0 {
		return "+" + d.String()
	}
	return d.String()
}
