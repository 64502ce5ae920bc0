package budget

import (
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// ComputeRecentStats produces a representative "typical month" for
// onboarding defaults by averaging over the last windowMonths fully
// completed calendar months. The in-progress month is excluded — it is
// partial and would bias the average downward.
//
// If fewer completed months of history exist, the average runs over
// however many are available. With zero completed months every stat is
// zero; the caller handles the zero-income onboarding state explicitly.
func ComputeRecentStats(txns []domain.Transaction, windowMonths int, now time.Time) *domain.RecentStats {
	stats := &domain.RecentStats{
		WindowMonths:   windowMonths,
		IncomeBySource: make(map[string]float64),
		FixedBySource:  make(map[string]float64),
	}
	if windowMonths <= 0 {
		return stats
	}

	currentMonth := MonthOf(now)

	// History begins at the earliest transaction on record.
	var earliest time.Time
	for _, tx := range txns {
		if tx.IsRemoved {
			continue
		}
		if earliest.IsZero() || tx.Date.Before(earliest) {
			earliest = tx.Date
		}
	}
	if earliest.IsZero() || !MonthOf(earliest).Before(currentMonth) {
		return stats
	}

	// Window: the windowMonths completed months ending just before the
	// current month, clipped to available history.
	windowStart := currentMonth.AddDate(0, -windowMonths, 0)
	if first := MonthOf(earliest); windowStart.Before(first) {
		windowStart = first
	}
	monthsAveraged := 0
	for m := windowStart; m.Before(currentMonth); m = m.AddDate(0, 1, 0) {
		monthsAveraged++
	}
	if monthsAveraged == 0 {
		return stats
	}
	stats.MonthsAveraged = monthsAveraged

	var totalIncome, totalFixed float64
	for _, tx := range txns {
		if tx.IsRemoved {
			continue
		}
		m := MonthOf(tx.Date)
		if m.Before(windowStart) || !m.Before(currentMonth) {
			continue
		}
		switch tx.BudgetClass {
		case domain.BudgetIncome:
			income := -tx.Amount
			totalIncome += income
			stats.IncomeBySource[tx.ProductClass] += income
		case domain.BudgetFixed:
			amount := effectiveAmount(tx)
			totalFixed += amount
			stats.FixedBySource[tx.ProductClass] += amount
		}
	}

	n := float64(monthsAveraged)
	stats.AvgIncome = totalIncome / n
	stats.AvgFixedSpend = totalFixed / n
	for src, total := range stats.IncomeBySource {
		stats.IncomeBySource[src] = total / n
	}
	for src, total := range stats.FixedBySource {
		stats.FixedBySource[src] = total / n
	}

	return stats
}
