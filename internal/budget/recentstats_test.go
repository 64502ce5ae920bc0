package budget_test

import (
	"testing"

	"github.com/marloweapps/flexspend-api/internal/budget"
	"github.com/marloweapps/flexspend-api/internal/domain"
)

func TestComputeRecentStats_AveragesCompletedMonths(t *testing.T) {
	now := date("2024-06-20")
	txns := []domain.Transaction{
		// Three completed months of income and rent.
		{ID: "p1", Date: date("2024-03-15"), Amount: -3000, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
		{ID: "p2", Date: date("2024-04-15"), Amount: -3000, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
		{ID: "p3", Date: date("2024-05-15"), Amount: -3600, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
		{ID: "r1", Date: date("2024-03-01"), Amount: 1200, BudgetClass: domain.BudgetFixed, ProductClass: "Housing"},
		{ID: "r2", Date: date("2024-04-01"), Amount: 1200, BudgetClass: domain.BudgetFixed, ProductClass: "Housing"},
		{ID: "r3", Date: date("2024-05-01"), Amount: 1200, BudgetClass: domain.BudgetFixed, ProductClass: "Housing"},
		// In-progress month must not count.
		{ID: "p4", Date: date("2024-06-14"), Amount: -9000, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
	}

	stats := budget.ComputeRecentStats(txns, 3, now)

	if stats.MonthsAveraged != 3 {
		t.Fatalf("expected 3 months averaged, got %d", stats.MonthsAveraged)
	}
	if stats.AvgIncome != 3200 {
		t.Errorf("expected avg income 3200, got %v", stats.AvgIncome)
	}
	if stats.AvgFixedSpend != 1200 {
		t.Errorf("expected avg fixed spend 1200, got %v", stats.AvgFixedSpend)
	}
	if got := stats.IncomeBySource["Work income"]; got != 3200 {
		t.Errorf("expected work income average 3200, got %v", got)
	}
	if got := stats.FixedBySource["Housing"]; got != 1200 {
		t.Errorf("expected housing average 1200, got %v", got)
	}
}

func TestComputeRecentStats_ShortHistory(t *testing.T) {
	now := date("2024-06-20")
	txns := []domain.Transaction{
		// Only one completed month of history.
		{ID: "p1", Date: date("2024-05-15"), Amount: -3000, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
	}

	stats := budget.ComputeRecentStats(txns, 6, now)

	if stats.MonthsAveraged != 1 {
		t.Fatalf("expected 1 month averaged, got %d", stats.MonthsAveraged)
	}
	if stats.AvgIncome != 3000 {
		t.Errorf("expected avg income 3000, got %v", stats.AvgIncome)
	}
}

func TestComputeRecentStats_ZeroCompletedMonths(t *testing.T) {
	now := date("2024-06-20")
	txns := []domain.Transaction{
		// History starts this month; nothing is completed yet.
		{ID: "p1", Date: date("2024-06-05"), Amount: -3000, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
	}

	stats := budget.ComputeRecentStats(txns, 3, now)

	if stats.MonthsAveraged != 0 {
		t.Fatalf("expected 0 months averaged, got %d", stats.MonthsAveraged)
	}
	if stats.AvgIncome != 0 || stats.AvgFixedSpend != 0 {
		t.Errorf("expected all-zero stats, got income=%v fixed=%v", stats.AvgIncome, stats.AvgFixedSpend)
	}
	if len(stats.IncomeBySource) != 0 {
		t.Errorf("expected empty per-source map, got %v", stats.IncomeBySource)
	}
}

func TestComputeRecentStats_NoHistory(t *testing.T) {
	stats := budget.ComputeRecentStats(nil, 3, date("2024-06-20"))
	if stats.AvgIncome != 0 || stats.AvgFixedSpend != 0 || stats.MonthsAveraged != 0 {
		t.Errorf("expected zero stats for empty history, got %+v", stats)
	}
}

func TestComputeRecentStats_MonthsWithoutIncomeDragAverage(t *testing.T) {
	now := date("2024-06-20")
	txns := []domain.Transaction{
		{ID: "p1", Date: date("2024-04-15"), Amount: -3000, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"},
		// May has history (a flex purchase) but no income.
		{ID: "f1", Date: date("2024-05-10"), Amount: 20, BudgetClass: domain.BudgetFlex, ProductClass: "Dining"},
	}

	stats := budget.ComputeRecentStats(txns, 2, now)

	if stats.MonthsAveraged != 2 {
		t.Fatalf("expected 2 months averaged, got %d", stats.MonthsAveraged)
	}
	if stats.AvgIncome != 1500 {
		t.Errorf("expected avg income 1500, got %v", stats.AvgIncome)
	}
}
