// Package domain defines the core business entities for FlexSpend.
// These models are independent of external services and represent the
// canonical data structures used throughout the budget backend.
package domain

import "time"

// BudgetCategory is the top-level classification driving all aggregation.
type BudgetCategory string

const (
	BudgetIncome BudgetCategory = "income"
	BudgetFixed  BudgetCategory = "fixed"
	BudgetFlex   BudgetCategory = "flex"
)

// ============================================================
// Transactions
// ============================================================

// Transaction represents one posted or pending bank movement.
//
// Sign convention (preserved end-to-end): a positive amount is money
// leaving the account (expense); a negative amount is money entering
// (income).
type Transaction struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"account_id"`
	UserID       string         `json:"user_id"`
	Amount       float64        `json:"amount"`
	Date         time.Time      `json:"date"` // effective date: authorized if present, else posted
	Category     string         `json:"category"`
	SubCategory  string         `json:"sub_category"`
	MerchantName string         `json:"merchant_name,omitempty"`
	Name         string         `json:"name,omitempty"`
	BudgetClass  BudgetCategory `json:"budget_category"`
	ProductClass string         `json:"product_category"`
	FixedAmount  *float64       `json:"fixed_amount,omitempty"`
	Pending      bool           `json:"pending"`
	IsRemoved    bool           `json:"is_removed"`
}

// DisplayName returns the merchant name, falling back to the raw name.
func (t Transaction) DisplayName() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// ProviderTransaction is the raw shape delivered by the account-linking
// provider before classification. Dates arrive as strings and may be
// malformed; AuthorizedDate wins over Date when present.
type ProviderTransaction struct {
	ID             string  `json:"transaction_id"`
	AccountID      string  `json:"account_id"`
	Amount         float64 `json:"amount"`
	Date           string  `json:"date"`
	AuthorizedDate string  `json:"authorized_date,omitempty"`
	Category       string  `json:"category"`
	SubCategory    string  `json:"sub_category"`
	MerchantName   string  `json:"merchant_name,omitempty"`
	Name           string  `json:"name,omitempty"`
	Pending        bool    `json:"pending"`
}

// EffectiveDate returns the authorized date when present, else the
// posted date, in the provider's YYYY-MM-DD format.
func (p ProviderTransaction) EffectiveDate() string {
	if p.AuthorizedDate != "" {
		return p.AuthorizedDate
	}
	return p.Date
}

// TransactionDelta is the incremental feed reconciled by the sync
// coordinator.
type TransactionDelta struct {
	Added    []ProviderTransaction `json:"added"`
	Modified []ProviderTransaction `json:"modified"`
	Removed  []string              `json:"removed"` // transaction ids
}

// ============================================================
// Preferences
// ============================================================

// BudgetPreference is a user-tunable classification rule keyed by the
// provider's (category, subCategory) pair.
type BudgetPreference struct {
	Category     string         `json:"category"`
	SubCategory  string         `json:"sub_category"`
	ProductClass string         `json:"product_category"`
	BudgetClass  BudgetCategory `json:"budget_category"`
	FixedAmount  *float64       `json:"fixed_amount,omitempty"`
}

// ============================================================
// Derived metrics
// ============================================================

// MonthKey identifies a calendar month as the first instant of that
// month in UTC.
type MonthKey = time.Time

// MetricsSnapshot is recomputed on demand, never persisted.
// SavingsPerMonth always equals income − fixed − flex by construction.
type MetricsSnapshot struct {
	Month time.Time `json:"month"`

	FixedSpendPerDay map[time.Time]float64 `json:"fixed_spend_per_day"`
	FlexSpendPerDay  map[time.Time]float64 `json:"flex_spend_per_day"`
	IncomePerDay     map[time.Time]float64 `json:"income_per_day"`

	FixedSpendPerMonth map[MonthKey]float64 `json:"fixed_spend_per_month"`
	FlexSpendPerMonth  map[MonthKey]float64 `json:"flex_spend_per_month"`
	IncomePerMonth     map[MonthKey]float64 `json:"income_per_month"`
	SavingsPerMonth    map[MonthKey]float64 `json:"savings_per_month"`

	MonthToDateFlexSpend float64 `json:"month_to_date_flex_spend"`
}

// RecentStats is the "typical month" seed computed over the trailing
// fully-completed months, used for onboarding defaults.
type RecentStats struct {
	WindowMonths   int                `json:"window_months"`
	MonthsAveraged int                `json:"months_averaged"`
	AvgIncome      float64            `json:"avg_income"`
	AvgFixedSpend  float64            `json:"avg_fixed_spend"`
	IncomeBySource map[string]float64 `json:"income_by_source"`
	FixedBySource  map[string]float64 `json:"fixed_by_source"`
}

// BudgetSettings are the user's expected/target values, distinct from
// the actuals in MetricsSnapshot. Never derived automatically except as
// an initial seed from RecentStats.
type BudgetSettings struct {
	UserID            string  `json:"user_id"`
	MonthlyIncome     float64 `json:"monthly_income"`
	MonthlyFixedSpend float64 `json:"monthly_fixed_spend"`
	MonthlySavings    float64 `json:"monthly_savings"`
}

// ============================================================
// Accounts & sync state
// ============================================================

// LinkedAccount is a bank account registered through the account-linking
// provider.
type LinkedAccount struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Mask   string `json:"mask,omitempty"`
}

// SyncState tracks per-user sync progress: the first transaction date
// ever encountered (absence means no sync has completed) and whether the
// one-time full-history backfill finished.
type SyncState struct {
	UserID               string     `json:"user_id"`
	FirstTransactionDate *time.Time `json:"first_transaction_date,omitempty"`
	BackfillComplete     bool       `json:"backfill_complete"`
}

// SyncMetrics is the JSON snapshot served by GET /v1/metrics/sync.
type SyncMetrics struct {
	DeltaRuns            int64   `json:"delta_runs"`
	BackfillRuns         int64   `json:"backfill_runs"`
	FailedRuns           int64   `json:"failed_runs"`
	TransactionsAdded    int64   `json:"transactions_added"`
	TransactionsModified int64   `json:"transactions_modified"`
	TransactionsRemoved  int64   `json:"transactions_removed"`
	RecordsSkipped       int64   `json:"records_skipped"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
}

// ============================================================
// Auth
// ============================================================

// Session is the token pair returned after phone verification.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// RefreshTokenRecord is the stored (hashed) side of a refresh token.
type RefreshTokenRecord struct {
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}
