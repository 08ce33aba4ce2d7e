package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/pkg/types"
)

// PlanFeatures is stored as JSON on the plan row.
type PlanFeatures struct {
	Screens int                `json:"screens"`
	Quality types.VideoQuality `json:"quality"`
	// Downloads is the download allowance; 0 means unlimited.
	Downloads                   int  `json:"downloads"`
	OfflineViewing              bool `json:"offline_viewing"`
	PrioritySupport             bool `json:"priority_support"`
	PersonalizedRecommendations bool `json:"personalized_recommendations"`
	TVAccess                    bool `json:"tv_access"`
}

type PlanEligibility struct {
	// StudentEmail restricts purchase to users with an academic email address.
	StudentEmail bool `gorm:"column:student_email;not null" json:"student_email"`
}

// Plan is a purchasable catalog entry. Deleted plans stay in the table so
// historical subscriptions keep resolving their plan.
type Plan struct {
	ID           string                           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string                           `gorm:"column:name;type:varchar(64);not null;uniqueIndex:idx_plan_name" json:"name"`
	DisplayName  string                           `gorm:"column:display_name;type:varchar(128);not null" json:"display_name"`
	Description  string                           `gorm:"column:description;type:text" json:"description"`
	Price        decimal.Decimal                  `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Currency     string                           `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	BillingCycle types.BillingCycle               `gorm:"column:billing_cycle;type:varchar(16);not null" json:"billing_cycle"`
	Features     datatypes.JSONType[PlanFeatures] `gorm:"column:features;type:jsonb;not null" json:"features"`
	IsActive     bool                             `gorm:"column:is_active;not null;index:idx_plan_active_sort,priority:1" json:"is_active"`
	IsPopular    bool                             `gorm:"column:is_popular;not null" json:"is_popular"`
	Discount     int                              `gorm:"column:discount;not null" json:"discount"`
	Eligibility  PlanEligibility                  `gorm:"embedded;embeddedPrefix:eligibility_" json:"eligibility"`
	SortOrder    int                              `gorm:"column:sort_order;not null;index:idx_plan_active_sort,priority:2" json:"sort_order"`
	CreatedAt    time.Time                        `json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
	DeletedAt    gorm.DeletedAt                   `gorm:"column:deleted_at;index" json:"-"`
}

func (Plan) TableName() string {
	return "plan"
}
