// Package report computes day-over-day deltas between snapshot rows and
// renders them as alert text.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"symmio/internal/models"
)

// endOfDayAnchor is the UTC wall-clock moment a reporting day closes at.
var endOfDayAnchor = 23*time.Hour + 59*time.Minute + 30*time.Second

// FieldDiff is one numeric column compared against its baseline. When no
// baseline row exists the old value is absent and the delta equals the new
// value.
type FieldDiff struct {
	Old     decimal.Decimal
	New     decimal.Decimal
	Delta   decimal.Decimal
	NoPrior bool
}

// DiffNumericFields compares two same-shaped numeric field maps. A nil old
// map means no baseline: every delta is the new value itself.
func DiffNumericFields(old, new map[string]decimal.Decimal) map[string]FieldDiff {
	out := make(map[string]FieldDiff, len(new))
	for name, newValue := range new {
		d := FieldDiff{New: newValue}
		if old == nil {
			d.Delta = newValue
			d.NoPrior = true
		} else {
			oldValue := old[name]
			d.Old = oldValue
			d.Delta = newValue.Sub(oldValue)
		}
		out[name] = d
	}
	return out
}

// DiffHistogram diffs quote-status counts by status code. Codes present only
// in the baseline appear with a negative delta.
func DiffHistogram(old, new models.StatusHistogram) map[string]int64 {
	out := make(map[string]int64, len(new))
	for code, count := range new {
		out[code] = count - old[code]
	}
	for code, count := range old {
		if _, ok := new[code]; !ok {
			out[code] = -count
		}
	}
	return out
}

// StateDiff is one liquidator wallet's movement between two snapshots,
// matched by address.
type StateDiff struct {
	Address   string
	Withdraw  decimal.Decimal
	Balance   decimal.Decimal
	Allocated decimal.Decimal
}

// DiffLiquidatorStates matches entries by address; wallets absent from the
// baseline diff against zero.
func DiffLiquidatorStates(old, new models.LiquidatorStates) []StateDiff {
	baseline := make(map[string]models.LiquidatorState, len(old))
	for _, s := range old {
		baseline[s.Address] = s
	}
	out := make([]StateDiff, 0, len(new))
	for _, s := range new {
		prior := baseline[s.Address]
		out = append(out, StateDiff{
			Address:   s.Address,
			Withdraw:  s.Withdraw.Sub(prior.Withdraw),
			Balance:   s.Balance.Sub(prior.Balance),
			Allocated: s.Allocated.Sub(prior.Allocated),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// RatioPercent returns numerator/denominator as a percentage. A zero
// denominator reports ok=false instead of aborting the caller.
func RatioPercent(numerator, denominator decimal.Decimal) (decimal.Decimal, bool) {
	if denominator.IsZero() {
		return decimal.Zero, false
	}
	return numerator.Mul(decimal.NewFromInt(100)).Div(denominator), true
}

// IsEndOfDay reports whether now falls within one fetch interval of the
// 23:59:30 UTC day boundary.
func IsEndOfDay(now time.Time, fetchInterval time.Duration) bool {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	anchor := midnight.Add(endOfDayAnchor)
	gap := utc.Sub(anchor)
	if gap < 0 {
		gap = -gap
	}
	return gap <= fetchInterval
}

// prevUTCMidnight is the day boundary the baseline snapshot must precede.
func prevUTCMidnight(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
