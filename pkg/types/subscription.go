package types

import "fmt"

// SubscriptionStatus is the lifecycle state of a subscription record.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// LiveSubscriptionStatuses are the statuses of which a user may hold at most one.
var LiveSubscriptionStatuses = []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusPending}

func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPending
}

// UserSubscriptionStatus is the status mirrored onto the user record.
type UserSubscriptionStatus string

const (
	UserSubscriptionStatusFree      UserSubscriptionStatus = "free"
	UserSubscriptionStatusActive    UserSubscriptionStatus = "active"
	UserSubscriptionStatusExpired   UserSubscriptionStatus = "expired"
	UserSubscriptionStatusCancelled UserSubscriptionStatus = "cancelled"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonPurchase   SubscriptionChangeReason = "purchase"
	SubscriptionChangeReasonWebhook    SubscriptionChangeReason = "webhook"
	SubscriptionChangeReasonCancel     SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonReactivate SubscriptionChangeReason = "reactivate"
	SubscriptionChangeReasonExpire     SubscriptionChangeReason = "expire"
	SubscriptionChangeReasonSuperseded SubscriptionChangeReason = "superseded"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// ParseBillingCycle defaults an empty value to monthly.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(s) {
	case "":
		return BillingCycleMonthly, nil
	case BillingCycleMonthly, BillingCycleYearly:
		return BillingCycle(s), nil
	default:
		return "", fmt.Errorf("unsupported billing cycle: %q", s)
	}
}

type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	PaymentMethodStripe   PaymentMethod = "stripe"
	PaymentMethodPaypal   PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodRazorpay, PaymentMethodStripe, PaymentMethodPaypal:
		return true
	}
	return false
}
