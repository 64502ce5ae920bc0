package budget_test

import (
	"testing"

	"github.com/marloweapps/flexspend-api/internal/budget"
	"github.com/marloweapps/flexspend-api/internal/domain"
)

func prefTable(prefs ...domain.BudgetPreference) *budget.PreferenceTable {
	return budget.NewPreferenceTable(prefs)
}

func TestClassify_PaymentAppMerchants(t *testing.T) {
	prefs := prefTable(domain.BudgetPreference{
		Category: "TRANSFER_OUT", SubCategory: "P2P",
		ProductClass: "Transfers", BudgetClass: domain.BudgetFixed,
	})

	for _, merchant := range []string{"Venmo", "Zelle", "Cash App"} {
		tx := domain.Transaction{
			MerchantName: merchant,
			Amount:       25,
			Category:     "TRANSFER_OUT",
			SubCategory:  "P2P",
		}
		c := budget.Classify(tx, prefs)
		if c.BudgetClass != domain.BudgetFlex {
			t.Errorf("%s: expected flex, got %s", merchant, c.BudgetClass)
		}
		if c.ProductClass != "Payment apps" {
			t.Errorf("%s: expected 'Payment apps', got %q", merchant, c.ProductClass)
		}
	}
}

func TestClassify_PaymentAppBeatsPreference(t *testing.T) {
	// The merchant override outranks an exact preference match.
	prefs := prefTable(domain.BudgetPreference{
		Category: "FOOD_AND_DRINK", SubCategory: "RESTAURANT",
		ProductClass: "Dining", BudgetClass: domain.BudgetFixed,
	})

	tx := domain.Transaction{
		MerchantName: "Venmo",
		Amount:       40,
		Category:     "FOOD_AND_DRINK",
		SubCategory:  "RESTAURANT",
	}
	c := budget.Classify(tx, prefs)
	if c.BudgetClass != domain.BudgetFlex || c.ProductClass != "Payment apps" {
		t.Errorf("expected (flex, Payment apps), got (%s, %s)", c.BudgetClass, c.ProductClass)
	}
}

func TestClassify_IncomeOverrideMerchant(t *testing.T) {
	tx := domain.Transaction{
		MerchantName: "Chime",
		Amount:       -1500, // inbound credit
		Category:     "TRANSFER_IN",
		SubCategory:  "DEPOSIT",
	}
	c := budget.Classify(tx, prefTable())
	if c.BudgetClass != domain.BudgetIncome {
		t.Errorf("expected income, got %s", c.BudgetClass)
	}
	if c.ProductClass != "Direct deposit" {
		t.Errorf("expected 'Direct deposit' grouping, got %q", c.ProductClass)
	}
}

func TestClassify_IncomeOverrideRequiresCredit(t *testing.T) {
	// An outbound movement to the same merchant is not income.
	tx := domain.Transaction{
		MerchantName: "Chime",
		Amount:       200,
	}
	c := budget.Classify(tx, prefTable())
	if c.BudgetClass == domain.BudgetIncome {
		t.Error("outbound amount must not classify as income")
	}
}

func TestClassify_PreferenceMatch(t *testing.T) {
	fixedAmount := 1200.0
	prefs := prefTable(domain.BudgetPreference{
		Category: "RENT_AND_UTILITIES", SubCategory: "RENT",
		ProductClass: "Housing", BudgetClass: domain.BudgetFixed,
		FixedAmount: &fixedAmount,
	})

	tx := domain.Transaction{
		Name:        "APARTMENT LLC",
		Amount:      1187.42,
		Category:    "RENT_AND_UTILITIES",
		SubCategory: "RENT",
	}
	c := budget.Classify(tx, prefs)
	if c.BudgetClass != domain.BudgetFixed {
		t.Errorf("expected fixed, got %s", c.BudgetClass)
	}
	if c.ProductClass != "Housing" {
		t.Errorf("expected 'Housing', got %q", c.ProductClass)
	}
	if c.FixedAmount == nil || *c.FixedAmount != 1200.0 {
		t.Errorf("expected fixed amount override 1200, got %v", c.FixedAmount)
	}
}

func TestClassify_Fallback(t *testing.T) {
	tx := domain.Transaction{
		Name:        "UNKNOWN MERCHANT",
		Amount:      13.37,
		Category:    "SOMETHING_NEW",
		SubCategory: "UNMAPPED",
	}
	c := budget.Classify(tx, prefTable())
	if c.BudgetClass != domain.BudgetFlex {
		t.Errorf("expected flex fallback, got %s", c.BudgetClass)
	}
	if c.ProductClass != "Other" {
		t.Errorf("expected 'Other' fallback, got %q", c.ProductClass)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	prefs := prefTable(budget.DefaultPreferences()...)
	tx := domain.Transaction{
		MerchantName: "Trader Joe's",
		Amount:       54.20,
		Category:     "FOOD_AND_DRINK",
		SubCategory:  "GROCERIES",
	}

	budget.Apply(&tx, prefs)
	first := tx
	budget.Apply(&tx, prefs)

	if tx.BudgetClass != first.BudgetClass || tx.ProductClass != first.ProductClass {
		t.Errorf("re-applying classification changed result: %+v vs %+v", first, tx)
	}
}

func TestFromProvider_MalformedDate(t *testing.T) {
	raw := domain.ProviderTransaction{
		ID:     "tx-bad",
		Amount: 10,
		Date:   "06/01/2024", // wrong format
	}
	if _, err := budget.FromProvider("user-1", raw, prefTable()); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestFromProvider_AuthorizedDateWins(t *testing.T) {
	raw := domain.ProviderTransaction{
		ID:             "tx-1",
		Amount:         10,
		Date:           "2024-06-03",
		AuthorizedDate: "2024-06-01",
	}
	tx, err := budget.FromProvider("user-1", raw, prefTable())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := tx.Date.Format("2006-01-02"); got != "2024-06-01" {
		t.Errorf("expected authorized date 2024-06-01, got %s", got)
	}
}
