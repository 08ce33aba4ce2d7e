package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/types"
)

func plan(price string, discount int) *models.Plan {
	return &models.Plan{Price: decimal.RequireFromString(price), Discount: discount}
}

func TestAmount(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		plan   *models.Plan
		cycle  types.BillingCycle
		amount string
		minor  int64
	}{
		{"standard monthly", DefaultPolicy(), plan("249", 0), types.BillingCycleMonthly, "249", 24900},
		{"standard yearly", DefaultPolicy(), plan("249", 0), types.BillingCycleYearly, "2390.4", 239040},
		{"annual plan yearly", DefaultPolicy(), plan("999", 20), types.BillingCycleYearly, "9590.4", 959040},
		{"basic yearly", DefaultPolicy(), plan("99", 0), types.BillingCycleYearly, "950.4", 95040},
		{"plan discount ignored by default", DefaultPolicy(), plan("249", 10), types.BillingCycleMonthly, "249", 24900},
		{
			"plan discount applied by policy",
			Policy{YearlyDiscountPercent: decimal.NewFromInt(20), ApplyPlanDiscount: true},
			plan("249", 10), types.BillingCycleMonthly, "224.1", 22410,
		},
		{
			"discounts compose when enabled",
			Policy{YearlyDiscountPercent: decimal.NewFromInt(20), ApplyPlanDiscount: true},
			plan("999", 20), types.BillingCycleYearly, "7672.32", 767232,
		},
		{"no yearly discount", Policy{}, plan("59", 0), types.BillingCycleYearly, "708", 70800},
		{"fractional price rounds", Policy{YearlyDiscountPercent: decimal.RequireFromString("33.33")}, plan("10.01", 0), types.BillingCycleYearly, "80.08", 8008},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCalculator(tc.policy)
			got, err := c.Amount(tc.plan, tc.cycle)
			require.NoError(t, err)
			require.True(t, decimal.RequireFromString(tc.amount).Equal(got), "got %s", got)
			require.Equal(t, tc.minor, MinorUnits(got))
		})
	}
}

func TestAmount_Rejects(t *testing.T) {
	c := NewCalculator(DefaultPolicy())

	_, err := c.Amount(plan("249", 0), types.BillingCycle("weekly"))
	require.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = c.Amount(nil, types.BillingCycleMonthly)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestMinorUnits_RoundsHalfUp(t *testing.T) {
	require.Equal(t, int64(13), MinorUnits(decimal.RequireFromString("0.125")))
	require.Equal(t, int64(12), MinorUnits(decimal.RequireFromString("0.1249")))
	require.Equal(t, int64(100), MinorUnits(decimal.RequireFromString("0.999")))
	require.Equal(t, int64(0), MinorUnits(decimal.Zero))
}
