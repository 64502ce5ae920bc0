package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/cache"
	"github.com/marloweapps/flexspend-api/internal/infra/memstore"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/service"
)

func newBudgetFixture(t *testing.T) (*service.BudgetService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := service.NewBudgetService(
		store, store, store,
		cache.New[*domain.MetricsSnapshot](time.Minute),
		observability.NewMetrics(), zap.NewNop(), 3,
	)
	return svc, store
}

func date(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGetMetrics_ComputesAndCaches(t *testing.T) {
	svc, store := newBudgetFixture(t)
	ctx := context.Background()

	store.UpsertTransaction(ctx, &domain.Transaction{
		ID: "t1", UserID: "u1", Amount: 50, Date: date("2024-06-03"), BudgetClass: domain.BudgetFlex, ProductClass: "Dining",
	})
	store.UpsertTransaction(ctx, &domain.Transaction{
		ID: "t2", UserID: "u1", Amount: -2000, Date: date("2024-06-01"), BudgetClass: domain.BudgetIncome, ProductClass: "Work income",
	})

	snap, err := svc.GetMetrics(ctx, "u1", date("2024-06-01"))
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	june := date("2024-06-01")
	if snap.FlexSpendPerMonth[june] != 50 {
		t.Errorf("expected flex 50, got %v", snap.FlexSpendPerMonth[june])
	}
	if snap.IncomePerMonth[june] != 2000 {
		t.Errorf("expected income 2000, got %v", snap.IncomePerMonth[june])
	}

	// A write that bypasses the service is invisible until the cache
	// is flushed; the second read must come from cache.
	store.UpsertTransaction(ctx, &domain.Transaction{
		ID: "t3", UserID: "u1", Amount: 999, Date: date("2024-06-04"), BudgetClass: domain.BudgetFlex, ProductClass: "Other",
	})
	snap2, err := svc.GetMetrics(ctx, "u1", date("2024-06-01"))
	if err != nil {
		t.Fatalf("get metrics again: %v", err)
	}
	if snap2.FlexSpendPerMonth[june] != 50 {
		t.Errorf("expected cached snapshot, got flex %v", snap2.FlexSpendPerMonth[june])
	}
}

func TestGetPreferences_SeedsDefaultsOnFirstRead(t *testing.T) {
	svc, store := newBudgetFixture(t)
	ctx := context.Background()

	prefs, err := svc.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if len(prefs) == 0 {
		t.Fatal("expected default preferences seeded for a new user")
	}

	stored, _ := store.ListPreferences(ctx, "u1")
	if len(stored) != len(prefs) {
		t.Errorf("expected defaults persisted, stored %d vs returned %d", len(stored), len(prefs))
	}
}

func TestGetPreferences_KeepsExistingRules(t *testing.T) {
	svc, store := newBudgetFixture(t)
	ctx := context.Background()

	store.ReplacePreferences(ctx, "u1", []domain.BudgetPreference{
		{Category: "FOOD_AND_DRINK", SubCategory: "COFFEE", ProductClass: "Coffee", BudgetClass: domain.BudgetFlex},
	})

	prefs, err := svc.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if len(prefs) != 1 || prefs[0].ProductClass != "Coffee" {
		t.Errorf("expected the user's own rule untouched, got %v", prefs)
	}
}

func TestUpdatePreferences_RejectsUnknownBudgetClass(t *testing.T) {
	svc, _ := newBudgetFixture(t)

	err := svc.UpdatePreferences(context.Background(), "u1", []domain.BudgetPreference{
		{Category: "FOOD_AND_DRINK", SubCategory: "COFFEE", ProductClass: "Coffee", BudgetClass: "splurge"},
	})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateSettings_RequiresPositiveIncome(t *testing.T) {
	svc, _ := newBudgetFixture(t)
	ctx := context.Background()

	var ve *domain.ErrValidation
	for _, income := range []float64{-1, 0} {
		err := svc.UpdateSettings(ctx, "u1", &domain.BudgetSettings{MonthlyIncome: income})
		if !errors.As(err, &ve) {
			t.Fatalf("income %v: expected validation error, got %v", income, err)
		}
	}

	err := svc.UpdateSettings(ctx, "u1", &domain.BudgetSettings{MonthlyIncome: 3000, MonthlyFixedSpend: -1})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for negative fixed spend, got %v", err)
	}

	// Zero fixed spend and zero savings target are valid states.
	if err := svc.UpdateSettings(ctx, "u1", &domain.BudgetSettings{MonthlyIncome: 3000}); err != nil {
		t.Fatalf("expected positive income to save, got %v", err)
	}
}

func TestOnboardingDefaults_SeedsFromRecentStats(t *testing.T) {
	svc, store := newBudgetFixture(t)
	ctx := context.Background()

	// Two completed months relative to the service clock. The window
	// math only needs the months to precede time.Now's month, so seed
	// recent history.
	now := time.Now().UTC()
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 15)
	prev2 := prev.AddDate(0, -1, 0)
	store.UpsertTransaction(ctx, &domain.Transaction{ID: "i1", UserID: "u1", Amount: -3000, Date: prev, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"})
	store.UpsertTransaction(ctx, &domain.Transaction{ID: "i2", UserID: "u1", Amount: -3000, Date: prev2, BudgetClass: domain.BudgetIncome, ProductClass: "Work income"})
	store.UpsertTransaction(ctx, &domain.Transaction{ID: "f1", UserID: "u1", Amount: 1000, Date: prev, BudgetClass: domain.BudgetFixed, ProductClass: "Housing"})
	store.UpsertTransaction(ctx, &domain.Transaction{ID: "f2", UserID: "u1", Amount: 1000, Date: prev2, BudgetClass: domain.BudgetFixed, ProductClass: "Housing"})

	defaults, stats, err := svc.OnboardingDefaults(ctx, "u1")
	if err != nil {
		t.Fatalf("onboarding defaults: %v", err)
	}
	if stats.MonthsAveraged != 2 {
		t.Fatalf("expected 2 months averaged, got %d", stats.MonthsAveraged)
	}
	if defaults.MonthlyIncome != 3000 {
		t.Errorf("expected income default 3000, got %v", defaults.MonthlyIncome)
	}
	if defaults.MonthlyFixedSpend != 1000 {
		t.Errorf("expected fixed default 1000, got %v", defaults.MonthlyFixedSpend)
	}
	if defaults.MonthlySavings != 400 {
		t.Errorf("expected savings default 400 (20%% of margin), got %v", defaults.MonthlySavings)
	}
}

func TestOnboardingDefaults_NoHistoryIsAllZero(t *testing.T) {
	svc, _ := newBudgetFixture(t)

	defaults, stats, err := svc.OnboardingDefaults(context.Background(), "u1")
	if err != nil {
		t.Fatalf("onboarding defaults: %v", err)
	}
	if stats.MonthsAveraged != 0 || defaults.MonthlyIncome != 0 || defaults.MonthlySavings != 0 {
		t.Errorf("expected all-zero defaults with no history, got %+v / %+v", defaults, stats)
	}
}
