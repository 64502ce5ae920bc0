package budget_test

import (
	"testing"
	"time"

	"github.com/marloweapps/flexspend-api/internal/budget"
	"github.com/marloweapps/flexspend-api/internal/domain"
)

func date(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeMetrics_PerDaySums(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "a", Date: date("2024-06-01"), Amount: 50, BudgetClass: domain.BudgetFlex, ProductClass: "Dining"},
		{ID: "b", Date: date("2024-06-01"), Amount: 20, BudgetClass: domain.BudgetFlex, ProductClass: "Dining"},
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), date("2024-07-15"), 0, 0)

	if got := snap.FlexSpendPerDay[date("2024-06-01")]; got != 70 {
		t.Errorf("expected flex per day 70, got %v", got)
	}
	if got := snap.FixedSpendPerDay[date("2024-06-01")]; got != 0 {
		t.Errorf("expected fixed per day 0, got %v", got)
	}
}

func TestComputeMetrics_IncomeSummedAsAbsolute(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "pay", Date: date("2024-06-14"), Amount: -2500, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), date("2024-07-15"), 0, 0)

	if got := snap.IncomePerDay[date("2024-06-14")]; got != 2500 {
		t.Errorf("expected income per day 2500, got %v", got)
	}
	if got := snap.IncomePerMonth[date("2024-06-01")]; got != 2500 {
		t.Errorf("expected income per month 2500, got %v", got)
	}
}

func TestComputeMetrics_SavingsIdentity(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "pay", Date: date("2024-06-14"), Amount: -3000, BudgetClass: domain.BudgetIncome},
		{ID: "rent", Date: date("2024-06-01"), Amount: 1200, BudgetClass: domain.BudgetFixed},
		{ID: "food", Date: date("2024-06-05"), Amount: 300, BudgetClass: domain.BudgetFlex},
	}

	// Now is in a later month, so June is a completed month with actuals.
	snap := budget.ComputeMetrics(txns, date("2024-06-01"), date("2024-07-15"), 9999, 9999)

	m := date("2024-06-01")
	want := snap.IncomePerMonth[m] - snap.FixedSpendPerMonth[m] - snap.FlexSpendPerMonth[m]
	if got := snap.SavingsPerMonth[m]; got != want {
		t.Errorf("savings identity broken: got %v want %v", got, want)
	}
	if snap.SavingsPerMonth[m] != 1500 {
		t.Errorf("expected savings 1500, got %v", snap.SavingsPerMonth[m])
	}
}

func TestComputeMetrics_CurrentMonthUsesExpectedValues(t *testing.T) {
	now := date("2024-06-20")
	txns := []domain.Transaction{
		{ID: "food", Date: date("2024-06-05"), Amount: 300, BudgetClass: domain.BudgetFlex},
		// Actual income so far this month, intentionally ignored for savings.
		{ID: "pay", Date: date("2024-06-14"), Amount: -1000, BudgetClass: domain.BudgetIncome},
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), now, 4000, 1500)

	if got := snap.SavingsPerMonth[date("2024-06-01")]; got != 4000-1500-300 {
		t.Errorf("expected expected-value savings 2200, got %v", got)
	}
}

func TestComputeMetrics_MonthToDateFlex(t *testing.T) {
	now := date("2024-06-20")
	txns := []domain.Transaction{
		{ID: "a", Date: date("2024-06-05"), Amount: 100, BudgetClass: domain.BudgetFlex},
		{ID: "b", Date: date("2024-06-19"), Amount: 50, BudgetClass: domain.BudgetFlex},
		{ID: "c", Date: date("2024-06-25"), Amount: 75, BudgetClass: domain.BudgetFlex}, // after now
		{ID: "d", Date: date("2024-05-28"), Amount: 60, BudgetClass: domain.BudgetFlex}, // prior month
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), now, 0, 0)

	if snap.MonthToDateFlexSpend != 150 {
		t.Errorf("expected month-to-date flex 150, got %v", snap.MonthToDateFlexSpend)
	}
}

func TestComputeMetrics_MultiMonthSinglePass(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "a", Date: date("2024-05-10"), Amount: 80, BudgetClass: domain.BudgetFlex},
		{ID: "b", Date: date("2024-06-10"), Amount: 90, BudgetClass: domain.BudgetFlex},
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), date("2024-07-15"), 0, 0)

	if got := snap.FlexSpendPerMonth[date("2024-05-01")]; got != 80 {
		t.Errorf("expected May flex 80, got %v", got)
	}
	if got := snap.FlexSpendPerMonth[date("2024-06-01")]; got != 90 {
		t.Errorf("expected June flex 90, got %v", got)
	}
	// Per-day maps stay scoped to the requested month.
	if _, ok := snap.FlexSpendPerDay[date("2024-05-10")]; ok {
		t.Error("per-day map must not include days outside the requested month")
	}
}

func TestComputeMetrics_EmptyMonthIsAllZero(t *testing.T) {
	snap := budget.ComputeMetrics(nil, date("2024-06-01"), date("2024-07-15"), 0, 0)

	if len(snap.FlexSpendPerDay) != 0 || len(snap.FixedSpendPerDay) != 0 || len(snap.IncomePerDay) != 0 {
		t.Error("expected empty per-day maps for a month with no transactions")
	}
	if got := snap.SavingsPerMonth[date("2024-06-01")]; got != 0 {
		t.Errorf("expected zero savings, got %v", got)
	}
}

func TestComputeMetrics_RemovedExcludedPendingIncluded(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "gone", Date: date("2024-06-03"), Amount: 500, BudgetClass: domain.BudgetFlex, IsRemoved: true},
		{ID: "pending", Date: date("2024-06-03"), Amount: 40, BudgetClass: domain.BudgetFlex, Pending: true},
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), date("2024-07-15"), 0, 0)

	if got := snap.FlexSpendPerDay[date("2024-06-03")]; got != 40 {
		t.Errorf("expected only the pending transaction (40), got %v", got)
	}
}

func TestComputeMetrics_FixedAmountOverride(t *testing.T) {
	declared := 1200.0
	txns := []domain.Transaction{
		{ID: "rent", Date: date("2024-06-01"), Amount: 1187.42, BudgetClass: domain.BudgetFixed, FixedAmount: &declared},
	}

	snap := budget.ComputeMetrics(txns, date("2024-06-01"), date("2024-07-15"), 0, 0)

	if got := snap.FixedSpendPerDay[date("2024-06-01")]; got != 1200 {
		t.Errorf("expected declared fixed amount 1200, got %v", got)
	}
}
