package models

import (
	"time"

	"github.com/fatflowers/streambox/pkg/types"
)

// UserSubscription is the subscription snapshot denormalized onto the user
// row. It is written in the same transaction as the subscription it mirrors.
type UserSubscription struct {
	CurrentPlanID *string                      `gorm:"column:current_plan_id;type:uuid" json:"current_plan_id"`
	Status        types.UserSubscriptionStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	ExpiryDate    *time.Time                   `gorm:"column:expiry_date" json:"expiry_date"`
	AutoRenewal   bool                         `gorm:"column:auto_renewal;not null" json:"auto_renewal"`
}

// User is the local record of an identity issued by the credential service.
type User struct {
	ID                string           `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Username          string           `gorm:"column:username;type:varchar(128)" json:"username"`
	Email             string           `gorm:"column:email;type:varchar(256);index" json:"email"`
	Role              types.UserRole   `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Subscription      UserSubscription `gorm:"embedded;embeddedPrefix:subscription_" json:"subscription"`
	PaymentCustomerID *string          `gorm:"column:payment_customer_id;type:varchar(128)" json:"payment_customer_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (User) TableName() string {
	return "app_user"
}
