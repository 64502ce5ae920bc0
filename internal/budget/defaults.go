package budget

import "github.com/marloweapps/flexspend-api/internal/domain"

// DefaultPreferences is the rule set seeded for a user at first use.
// The client overwrites the table wholesale on edit, so these only ever
// apply before the first preference push.
func DefaultPreferences() []domain.BudgetPreference {
	return []domain.BudgetPreference{
		{Category: "INCOME", SubCategory: "WAGES", ProductClass: "Work income", BudgetClass: domain.BudgetIncome},
		{Category: "INCOME", SubCategory: "INTEREST_EARNED", ProductClass: "Interest", BudgetClass: domain.BudgetIncome},
		{Category: "INCOME", SubCategory: "DIVIDENDS", ProductClass: "Investments", BudgetClass: domain.BudgetIncome},
		{Category: "INCOME", SubCategory: "TAX_REFUND", ProductClass: "Tax refund", BudgetClass: domain.BudgetIncome},

		{Category: "RENT_AND_UTILITIES", SubCategory: "RENT", ProductClass: "Housing", BudgetClass: domain.BudgetFixed},
		{Category: "RENT_AND_UTILITIES", SubCategory: "GAS_AND_ELECTRICITY", ProductClass: "Utilities", BudgetClass: domain.BudgetFixed},
		{Category: "RENT_AND_UTILITIES", SubCategory: "INTERNET_AND_CABLE", ProductClass: "Utilities", BudgetClass: domain.BudgetFixed},
		{Category: "RENT_AND_UTILITIES", SubCategory: "WATER", ProductClass: "Utilities", BudgetClass: domain.BudgetFixed},
		{Category: "RENT_AND_UTILITIES", SubCategory: "TELEPHONE", ProductClass: "Phone", BudgetClass: domain.BudgetFixed},
		{Category: "LOAN_PAYMENTS", SubCategory: "MORTGAGE_PAYMENT", ProductClass: "Housing", BudgetClass: domain.BudgetFixed},
		{Category: "LOAN_PAYMENTS", SubCategory: "CAR_PAYMENT", ProductClass: "Transportation", BudgetClass: domain.BudgetFixed},
		{Category: "LOAN_PAYMENTS", SubCategory: "STUDENT_LOAN_PAYMENT", ProductClass: "Loans", BudgetClass: domain.BudgetFixed},
		{Category: "INSURANCE", SubCategory: "INSURANCE_PREMIUM", ProductClass: "Insurance", BudgetClass: domain.BudgetFixed},
		{Category: "MEDICAL", SubCategory: "PRIMARY_CARE", ProductClass: "Health", BudgetClass: domain.BudgetFixed},

		{Category: "FOOD_AND_DRINK", SubCategory: "GROCERIES", ProductClass: "Groceries", BudgetClass: domain.BudgetFlex},
		{Category: "FOOD_AND_DRINK", SubCategory: "RESTAURANT", ProductClass: "Dining", BudgetClass: domain.BudgetFlex},
		{Category: "FOOD_AND_DRINK", SubCategory: "COFFEE", ProductClass: "Dining", BudgetClass: domain.BudgetFlex},
		{Category: "TRANSPORTATION", SubCategory: "GAS", ProductClass: "Transportation", BudgetClass: domain.BudgetFlex},
		{Category: "TRANSPORTATION", SubCategory: "PUBLIC_TRANSIT", ProductClass: "Transportation", BudgetClass: domain.BudgetFlex},
		{Category: "TRANSPORTATION", SubCategory: "TAXIS_AND_RIDE_SHARES", ProductClass: "Transportation", BudgetClass: domain.BudgetFlex},
		{Category: "GENERAL_MERCHANDISE", SubCategory: "CLOTHING_AND_ACCESSORIES", ProductClass: "Shopping", BudgetClass: domain.BudgetFlex},
		{Category: "GENERAL_MERCHANDISE", SubCategory: "ONLINE_MARKETPLACES", ProductClass: "Shopping", BudgetClass: domain.BudgetFlex},
		{Category: "ENTERTAINMENT", SubCategory: "STREAMING", ProductClass: "Subscriptions", BudgetClass: domain.BudgetFlex},
		{Category: "ENTERTAINMENT", SubCategory: "MOVIES_AND_EVENTS", ProductClass: "Entertainment", BudgetClass: domain.BudgetFlex},
		{Category: "PERSONAL_CARE", SubCategory: "GYMS_AND_FITNESS_CENTERS", ProductClass: "Fitness", BudgetClass: domain.BudgetFlex},
		{Category: "TRAVEL", SubCategory: "LODGING", ProductClass: "Travel", BudgetClass: domain.BudgetFlex},
		{Category: "TRAVEL", SubCategory: "FLIGHTS", ProductClass: "Travel", BudgetClass: domain.BudgetFlex},
	}
}
