package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/streambox/pkg/types"
)

// SubscriptionDailySnapshot is a daily copy of each live subscription, used
// for the daily active subscription statistic.
type SubscriptionDailySnapshot struct {
	ID             string                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubscriptionID string                   `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_snapshot_subscription_date,priority:1" json:"subscription_id"`
	UserID         string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	PlanID         string                   `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	Status         types.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	EndDate        time.Time                `gorm:"column:end_date;not null" json:"end_date"`
	Amount         decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency       string                   `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	// SnapshotDate is YYYY-MM-DD in UTC.
	SnapshotDate string    `gorm:"column:snapshot_date;type:varchar(10);not null;uniqueIndex:idx_snapshot_subscription_date,priority:2" json:"snapshot_date"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshot"
}
