package budget

import (
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// MonthOf truncates t to the first instant of its calendar month in UTC.
func MonthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates t to midnight UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// effectiveAmount returns the amount used for aggregation. When a
// preference marked the transaction as a fixed recurring bill with a
// declared amount, that amount wins for display sums.
func effectiveAmount(tx domain.Transaction) float64 {
	if tx.BudgetClass == domain.BudgetFixed && tx.FixedAmount != nil {
		return *tx.FixedAmount
	}
	return tx.Amount
}

// ComputeMetrics derives the monthly metrics snapshot from a store
// snapshot. The per-day maps cover the requested month; the per-month
// maps cover every month present in txns so multiple months' snapshots
// come out of one pass.
//
// Income rows carry negative amounts by convention and are summed as
// absolute values. Soft-removed transactions are excluded; pending ones
// are included. A month with no transactions yields all-zero metrics.
//
// Savings per month is income − fixed − flex. For the in-progress month
// (the month containing now) actual income and fixed spend are not yet
// representative, so expectedIncome/expectedFixedSpend stand in.
func ComputeMetrics(txns []domain.Transaction, month, now time.Time, expectedIncome, expectedFixedSpend float64) *domain.MetricsSnapshot {
	month = MonthOf(month)
	currentMonth := MonthOf(now)
	monthEnd := month.AddDate(0, 1, 0)

	snap := &domain.MetricsSnapshot{
		Month:              month,
		FixedSpendPerDay:   make(map[time.Time]float64),
		FlexSpendPerDay:    make(map[time.Time]float64),
		IncomePerDay:       make(map[time.Time]float64),
		FixedSpendPerMonth: make(map[time.Time]float64),
		FlexSpendPerMonth:  make(map[time.Time]float64),
		IncomePerMonth:     make(map[time.Time]float64),
		SavingsPerMonth:    make(map[time.Time]float64),
	}

	for _, tx := range txns {
		if tx.IsRemoved {
			continue
		}

		txMonth := MonthOf(tx.Date)
		amount := effectiveAmount(tx)
		inRequestedMonth := !tx.Date.Before(month) && tx.Date.Before(monthEnd)
		day := DayOf(tx.Date)

		switch tx.BudgetClass {
		case domain.BudgetIncome:
			income := -tx.Amount // stored negative, reported positive
			snap.IncomePerMonth[txMonth] += income
			if inRequestedMonth {
				snap.IncomePerDay[day] += income
			}
		case domain.BudgetFixed:
			snap.FixedSpendPerMonth[txMonth] += amount
			if inRequestedMonth {
				snap.FixedSpendPerDay[day] += amount
			}
		case domain.BudgetFlex:
			snap.FlexSpendPerMonth[txMonth] += amount
			if inRequestedMonth {
				snap.FlexSpendPerDay[day] += amount
			}
			if txMonth.Equal(currentMonth) && !tx.Date.After(now) {
				snap.MonthToDateFlexSpend += amount
			}
		}
	}

	// Savings for every month seen, plus the requested month even when empty.
	months := map[time.Time]bool{month: true}
	for m := range snap.IncomePerMonth {
		months[m] = true
	}
	for m := range snap.FixedSpendPerMonth {
		months[m] = true
	}
	for m := range snap.FlexSpendPerMonth {
		months[m] = true
	}
	for m := range months {
		income := snap.IncomePerMonth[m]
		fixed := snap.FixedSpendPerMonth[m]
		if m.Equal(currentMonth) {
			income = expectedIncome
			fixed = expectedFixedSpend
		}
		snap.SavingsPerMonth[m] = income - fixed - snap.FlexSpendPerMonth[m]
	}

	return snap
}
