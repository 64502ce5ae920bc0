// Package budget holds the pure budget logic: transaction classification,
// metrics aggregation, and trailing-window statistics. Nothing in this
// package performs I/O; the service layer feeds it store snapshots.
package budget

import (
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// paymentAppMerchants are peer-to-peer payment merchants whose movements
// are always discretionary, regardless of the provider's category.
var paymentAppMerchants = map[string]bool{
	"Venmo":    true,
	"Zelle":    true,
	"Cash App": true,
}

// incomeOverrideMerchant: inbound credits from this merchant are treated
// as income regardless of category/subCategory (early direct deposits
// arrive under generic transfer categories).
const incomeOverrideMerchant = "Chime"

const (
	productPaymentApps   = "Payment apps"
	productDirectDeposit = "Direct deposit"
	productOther         = "Other"
)

// prefKey is the exact-match lookup key for the preference table.
type prefKey struct {
	category    string
	subCategory string
}

// PreferenceTable is an indexed view of a user's budget preferences.
// Read-only to the classifier.
type PreferenceTable struct {
	rules map[prefKey]domain.BudgetPreference
}

// NewPreferenceTable indexes preferences by (category, subCategory).
// Later duplicates win, matching the wholesale-replace write path.
func NewPreferenceTable(prefs []domain.BudgetPreference) *PreferenceTable {
	rules := make(map[prefKey]domain.BudgetPreference, len(prefs))
	for _, p := range prefs {
		rules[prefKey{p.Category, p.SubCategory}] = p
	}
	return &PreferenceTable{rules: rules}
}

// Lookup returns the preference for an exact (category, subCategory) pair.
func (t *PreferenceTable) Lookup(category, subCategory string) (domain.BudgetPreference, bool) {
	p, ok := t.rules[prefKey{category, subCategory}]
	return p, ok
}

// Classification is the classifier's output.
type Classification struct {
	BudgetClass  domain.BudgetCategory
	ProductClass string
	FixedAmount  *float64
}

// Classify assigns a budget category and product category to a
// transaction. It is a pure function of (transaction, preference table)
// and never fails: the fallback rule is always defined.
//
// Resolution order (first match wins; the precedence is load-bearing):
//  1. payment-app merchant override
//  2. income-override merchant with an inbound (negative) amount
//  3. exact (category, subCategory) preference lookup
//  4. fallback: Flex / "Other"
func Classify(tx domain.Transaction, prefs *PreferenceTable) Classification {
	merchant := tx.DisplayName()

	if paymentAppMerchants[merchant] {
		return Classification{BudgetClass: domain.BudgetFlex, ProductClass: productPaymentApps}
	}

	if merchant == incomeOverrideMerchant && tx.Amount < 0 {
		return Classification{BudgetClass: domain.BudgetIncome, ProductClass: productDirectDeposit}
	}

	if p, ok := prefs.Lookup(tx.Category, tx.SubCategory); ok {
		return Classification{
			BudgetClass:  p.BudgetClass,
			ProductClass: p.ProductClass,
			FixedAmount:  p.FixedAmount,
		}
	}

	return Classification{BudgetClass: domain.BudgetFlex, ProductClass: productOther}
}

// Apply classifies tx in place. Applying it twice with the same
// preference table yields the same result.
func Apply(tx *domain.Transaction, prefs *PreferenceTable) {
	c := Classify(*tx, prefs)
	tx.BudgetClass = c.BudgetClass
	tx.ProductClass = c.ProductClass
	tx.FixedAmount = c.FixedAmount
}

// providerDateLayout is the YYYY-MM-DD format used by the aggregator feed.
const providerDateLayout = "2006-01-02"

// ParseProviderDate parses a provider date string. Callers skip the
// transaction (not the batch) when this fails.
func ParseProviderDate(s string) (time.Time, error) {
	return time.ParseInLocation(providerDateLayout, s, time.UTC)
}

// FromProvider converts a raw provider transaction into a domain
// transaction and classifies it. Returns an error only for a malformed
// effective date.
func FromProvider(userID string, raw domain.ProviderTransaction, prefs *PreferenceTable) (*domain.Transaction, error) {
	date, err := ParseProviderDate(raw.EffectiveDate())
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:           raw.ID,
		AccountID:    raw.AccountID,
		UserID:       userID,
		Amount:       raw.Amount,
		Date:         date,
		Category:     raw.Category,
		SubCategory:  raw.SubCategory,
		MerchantName: raw.MerchantName,
		Name:         raw.Name,
		Pending:      raw.Pending,
	}
	Apply(tx, prefs)
	return tx, nil
}
