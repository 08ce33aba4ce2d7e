package pricing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/types"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Policy decides how catalog prices become charge amounts.
type Policy struct {
	// YearlyDiscountPercent is taken off twelve monthly prices for yearly billing.
	YearlyDiscountPercent decimal.Decimal
	// ApplyPlanDiscount additionally applies plan.Discount. Off by default: the
	// catalog field is informational unless this is set.
	ApplyPlanDiscount bool
}

func DefaultPolicy() Policy {
	return Policy{YearlyDiscountPercent: decimal.NewFromInt(20)}
}

type Calculator struct {
	policy Policy
}

func NewCalculator(p Policy) *Calculator {
	return &Calculator{policy: p}
}

func NewFromConfig(cfg *config.Config) *Calculator {
	return NewCalculator(Policy{
		YearlyDiscountPercent: cfg.Pricing.YearlyDiscountPercent,
		ApplyPlanDiscount:     cfg.Pricing.ApplyPlanDiscount,
	})
}

// Amount returns the charge in major units, rounded half away from zero to
// two decimals.
func (c *Calculator) Amount(plan *models.Plan, cycle types.BillingCycle) (decimal.Decimal, error) {
	if plan == nil {
		return decimal.Zero, apperr.Validation("plan is required")
	}
	amount := plan.Price
	switch cycle {
	case types.BillingCycleMonthly:
	case types.BillingCycleYearly:
		amount = amount.Mul(twelve).Mul(hundred.Sub(c.policy.YearlyDiscountPercent)).Div(hundred)
	default:
		return decimal.Zero, apperr.Validation("unsupported billing cycle: %q", cycle)
	}
	if c.policy.ApplyPlanDiscount && plan.Discount > 0 {
		amount = amount.Mul(hundred.Sub(decimal.NewFromInt(int64(plan.Discount)))).Div(hundred)
	}
	return amount.Round(2), nil
}

// MinorUnits converts a major-unit amount to the gateway's smallest unit
// (paise for INR), rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

var Module = fx.Options(
	fx.Provide(NewFromConfig),
)
