package handler

import (
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// metricsPayload is the wire shape of a metrics snapshot: days as
// YYYY-MM-DD and months as YYYY-MM instead of raw timestamps.
type metricsPayload struct {
	Month string `json:"month"`

	FixedSpendPerDay map[string]float64 `json:"fixed_spend_per_day"`
	FlexSpendPerDay  map[string]float64 `json:"flex_spend_per_day"`
	IncomePerDay     map[string]float64 `json:"income_per_day"`

	FixedSpendPerMonth map[string]float64 `json:"fixed_spend_per_month"`
	FlexSpendPerMonth  map[string]float64 `json:"flex_spend_per_month"`
	IncomePerMonth     map[string]float64 `json:"income_per_month"`
	SavingsPerMonth    map[string]float64 `json:"savings_per_month"`

	MonthToDateFlexSpend float64 `json:"month_to_date_flex_spend"`
}

func metricsResponse(snap *domain.MetricsSnapshot) metricsPayload {
	return metricsPayload{
		Month:                snap.Month.Format("2006-01"),
		FixedSpendPerDay:     formatKeys(snap.FixedSpendPerDay, "2006-01-02"),
		FlexSpendPerDay:      formatKeys(snap.FlexSpendPerDay, "2006-01-02"),
		IncomePerDay:         formatKeys(snap.IncomePerDay, "2006-01-02"),
		FixedSpendPerMonth:   formatKeys(snap.FixedSpendPerMonth, "2006-01"),
		FlexSpendPerMonth:    formatKeys(snap.FlexSpendPerMonth, "2006-01"),
		IncomePerMonth:       formatKeys(snap.IncomePerMonth, "2006-01"),
		SavingsPerMonth:      formatKeys(snap.SavingsPerMonth, "2006-01"),
		MonthToDateFlexSpend: snap.MonthToDateFlexSpend,
	}
}

func formatKeys(in map[time.Time]float64, layout string) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k.Format(layout)] = v
	}
	return out
}
