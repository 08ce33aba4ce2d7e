package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/streambox/pkg/types"
)

// Subscription is one ledger record of a user's entitlement period.
// A user holds at most one record in a live status (active or pending); this
// is enforced by the partial unique index idx_subscription_live_user created
// in the migration.
type Subscription struct {
	ID           string                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       string                   `gorm:"column:user_id;type:varchar(64);not null;index:idx_subscription_user_status,priority:1" json:"user_id"`
	PlanID       string                   `gorm:"column:plan_id;type:uuid;not null;index" json:"plan_id"`
	Plan         *Plan                    `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status       types.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null;index:idx_subscription_user_status,priority:2;index:idx_subscription_end_status,priority:2" json:"status"`
	BillingCycle types.BillingCycle       `gorm:"column:billing_cycle;type:varchar(16);not null" json:"billing_cycle"`
	StartDate    time.Time                `gorm:"column:start_date;not null" json:"start_date"`
	EndDate      time.Time                `gorm:"column:end_date;not null;index:idx_subscription_end_status,priority:1" json:"end_date"`
	// Amount is the price charged, in major units, snapshotted at activation.
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	PaymentMethod types.PaymentMethod `gorm:"column:payment_method;type:varchar(16);not null;uniqueIndex:idx_subscription_payment,priority:1" json:"payment_method"`
	// PaymentID is the gateway payment reference; a payment activates at most one subscription.
	PaymentID       string     `gorm:"column:payment_id;type:varchar(128);not null;uniqueIndex:idx_subscription_payment,priority:2" json:"payment_id"`
	OrderID         string     `gorm:"column:order_id;type:varchar(128);not null" json:"order_id"`
	AutoRenewal     bool       `gorm:"column:auto_renewal;not null" json:"auto_renewal"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy     *string    `gorm:"column:cancelled_by;type:varchar(64)" json:"cancelled_by,omitempty"`
	GracePeriodEnds *time.Time `gorm:"column:grace_period_ends" json:"grace_period_ends,omitempty"`
	// Usage counters are tracked by the playback service; this service never
	// resets them.
	ScreensUsed   int       `gorm:"column:screens_used;not null" json:"screens_used"`
	DownloadsUsed int       `gorm:"column:downloads_used;not null" json:"downloads_used"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Valid reports whether the subscription entitles the user at now.
func (s *Subscription) Valid(now time.Time) bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.EndDate.After(now)
}

// Snapshot returns a copy without the loaded plan, for change logs.
func (s *Subscription) Snapshot() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Plan = nil
	return &cp
}
