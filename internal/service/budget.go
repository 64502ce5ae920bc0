// Package service implements the application logic between the HTTP
// handlers and the ports: budget metrics, preference and settings
// management, the sync coordinator, and session auth.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/budget"
	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/port"
)

var tracer = otel.Tracer("service")

// validBudgetClasses for preference validation.
var validBudgetClasses = map[domain.BudgetCategory]bool{
	domain.BudgetIncome: true,
	domain.BudgetFixed:  true,
	domain.BudgetFlex:   true,
}

// BudgetService serves metrics snapshots, recent stats, preferences,
// and settings. Metrics are derived on demand from the transaction
// store and cached per (user, month).
type BudgetService struct {
	transactions port.TransactionStore
	preferences  port.PreferenceStore
	settings     port.SettingsStore
	cache        port.Cache[*domain.MetricsSnapshot]
	metrics      *observability.Metrics
	logger       *zap.Logger
	windowMonths int
	now          func() time.Time
}

// NewBudgetService creates a budget service. windowMonths is the
// trailing-average window for recent stats.
func NewBudgetService(
	transactions port.TransactionStore,
	preferences port.PreferenceStore,
	settings port.SettingsStore,
	metricsCache port.Cache[*domain.MetricsSnapshot],
	metrics *observability.Metrics,
	logger *zap.Logger,
	windowMonths int,
) *BudgetService {
	return &BudgetService{
		transactions: transactions,
		preferences:  preferences,
		settings:     settings,
		cache:        metricsCache,
		metrics:      metrics,
		logger:       logger,
		windowMonths: windowMonths,
		now:          time.Now,
	}
}

// metricsCacheKey builds the per-user, per-month cache key. The user
// prefix is what the sync coordinator flushes after reconciliation.
func metricsCacheKey(userID string, month time.Time) string {
	return fmt.Sprintf("metrics:%s:%s", userID, month.Format("2006-01"))
}

// MetricsCachePrefix is the cache key prefix covering all of a user's
// cached snapshots.
func MetricsCachePrefix(userID string) string {
	return fmt.Sprintf("metrics:%s:", userID)
}

// GetMetrics computes (or returns the cached) metrics snapshot for the
// given month. Expected income and fixed spend for the in-progress
// month come from the user's settings; a user without settings gets
// zero expectations.
func (s *BudgetService) GetMetrics(ctx context.Context, userID string, month time.Time) (*domain.MetricsSnapshot, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetMetrics")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("get_metrics", time.Since(start)) }()

	month = budget.MonthOf(month)
	key := metricsCacheKey(userID, month)
	if snap, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("metrics")
		return snap, nil
	}
	s.metrics.IncrCacheMiss("metrics")

	txns, err := s.transactions.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	expectedIncome, expectedFixed := 0.0, 0.0
	settings, err := s.settings.GetSettings(ctx, userID)
	switch {
	case err == nil:
		expectedIncome = settings.MonthlyIncome
		expectedFixed = settings.MonthlyFixedSpend
	case !isNotFound(err):
		return nil, err
	}

	snap := budget.ComputeMetrics(txns, month, s.now(), expectedIncome, expectedFixed)
	s.cache.Set(key, snap)
	return snap, nil
}

// GetRecentStats averages income and fixed spend over the trailing
// completed months. windowMonths <= 0 uses the configured default.
func (s *BudgetService) GetRecentStats(ctx context.Context, userID string, windowMonths int) (*domain.RecentStats, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetRecentStats")
	defer span.End()

	if windowMonths <= 0 {
		windowMonths = s.windowMonths
	}
	txns, err := s.transactions.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return budget.ComputeRecentStats(txns, windowMonths, s.now()), nil
}

// GetPreferences returns the user's classification rules, seeding the
// defaults on first read so new users start with a sensible table.
func (s *BudgetService) GetPreferences(ctx context.Context, userID string) ([]domain.BudgetPreference, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.GetPreferences")
	defer span.End()

	prefs, err := s.preferences.ListPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		return prefs, nil
	}

	defaults := budget.DefaultPreferences()
	if err := s.preferences.ReplacePreferences(ctx, userID, defaults); err != nil {
		return nil, err
	}
	s.logger.Info("seeded default budget preferences", zap.String("user_id", userID))
	return defaults, nil
}

// UpdatePreferences replaces the user's rule table wholesale. Already
// classified transactions keep their categories; the new rules apply
// from the next sync onward.
func (s *BudgetService) UpdatePreferences(ctx context.Context, userID string, prefs []domain.BudgetPreference) error {
	ctx, span := tracer.Start(ctx, "BudgetService.UpdatePreferences")
	defer span.End()

	for i, p := range prefs {
		if p.Category == "" {
			return &domain.ErrValidation{Field: fmt.Sprintf("preferences[%d].category", i), Message: "required"}
		}
		if !validBudgetClasses[p.BudgetClass] {
			return &domain.ErrValidation{
				Field:   fmt.Sprintf("preferences[%d].budget_category", i),
				Message: fmt.Sprintf("must be one of income, fixed, flex; got %q", p.BudgetClass),
			}
		}
		if p.FixedAmount != nil && *p.FixedAmount < 0 {
			return &domain.ErrValidation{
				Field:   fmt.Sprintf("preferences[%d].fixed_amount", i),
				Message: "must not be negative",
			}
		}
	}
	return s.preferences.ReplacePreferences(ctx, userID, prefs)
}

// GetSettings returns the user's expected/target budget values.
func (s *BudgetService) GetSettings(ctx context.Context, userID string) (*domain.BudgetSettings, error) {
	return s.settings.GetSettings(ctx, userID)
}

// UpdateSettings validates and stores the user's target values. A user
// with no income history enters settings manually; a declared income of
// zero is rejected rather than saved.
func (s *BudgetService) UpdateSettings(ctx context.Context, userID string, settings *domain.BudgetSettings) error {
	ctx, span := tracer.Start(ctx, "BudgetService.UpdateSettings")
	defer span.End()

	if settings.MonthlyIncome <= 0 {
		return &domain.ErrValidation{Field: "monthly_income", Message: "must be greater than zero"}
	}
	if settings.MonthlyFixedSpend < 0 {
		return &domain.ErrValidation{Field: "monthly_fixed_spend", Message: "must not be negative"}
	}
	if settings.MonthlySavings < 0 {
		return &domain.ErrValidation{Field: "monthly_savings", Message: "must not be negative"}
	}
	settings.UserID = userID
	return s.settings.PutSettings(ctx, settings)
}

// OnboardingDefaults proposes initial settings from the user's recent
// stats. The savings target starts at a fifth of the discretionary
// margin; the client lets the user adjust before saving.
func (s *BudgetService) OnboardingDefaults(ctx context.Context, userID string) (*domain.BudgetSettings, *domain.RecentStats, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.OnboardingDefaults")
	defer span.End()

	stats, err := s.GetRecentStats(ctx, userID, 0)
	if err != nil {
		return nil, nil, err
	}

	margin := stats.AvgIncome - stats.AvgFixedSpend
	if margin < 0 {
		margin = 0
	}
	defaults := &domain.BudgetSettings{
		UserID:            userID,
		MonthlyIncome:     stats.AvgIncome,
		MonthlyFixedSpend: stats.AvgFixedSpend,
		MonthlySavings:    margin * 0.2,
	}
	return defaults, stats, nil
}

// ListNewTransactions returns the transactions feeding the home screen:
// everything from the start of the previous calendar month.
func (s *BudgetService) ListNewTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.ListNewTransactions")
	defer span.End()

	now := s.now()
	from := budget.MonthOf(now).AddDate(0, -1, 0)
	return s.transactions.ListTransactionsByDateRange(ctx, userID, from, now)
}

// ListAccountHistory returns the full stored history for one account.
func (s *BudgetService) ListAccountHistory(ctx context.Context, userID, accountID string) ([]domain.Transaction, error) {
	return s.transactions.ListTransactionsByAccount(ctx, userID, accountID)
}

// DeleteTransaction removes a transaction outright and drops the user's
// cached snapshots.
func (s *BudgetService) DeleteTransaction(ctx context.Context, userID, txID string) error {
	ctx, span := tracer.Start(ctx, "BudgetService.DeleteTransaction")
	defer span.End()

	if err := s.transactions.DeleteTransaction(ctx, userID, txID); err != nil {
		return err
	}
	if flusher, ok := s.cache.(interface{ FlushPrefix(string) }); ok {
		flusher.FlushPrefix(MetricsCachePrefix(userID))
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}
