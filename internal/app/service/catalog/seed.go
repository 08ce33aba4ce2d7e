package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
	"github.com/fatflowers/streambox/pkg/types"
)

// DefaultPlans is the launch catalog.
func DefaultPlans() []*models.Plan {
	plan := func(name, display string, price int64, cycle types.BillingCycle, f models.PlanFeatures, popular bool, discount int, student bool, order int) *models.Plan {
		return &models.Plan{
			Name:         name,
			DisplayName:  display,
			Price:        decimal.NewFromInt(price),
			Currency:     DefaultCurrency,
			BillingCycle: cycle,
			Features:     datatypes.NewJSONType(f),
			IsActive:     true,
			IsPopular:    popular,
			Discount:     discount,
			Eligibility:  models.PlanEligibility{StudentEmail: student},
			SortOrder:    order,
		}
	}
	return []*models.Plan{
		plan("basic", "Basic Plan", 99, types.BillingCycleMonthly, models.PlanFeatures{
			Screens: 1, Quality: types.VideoQuality480p,
		}, false, 0, false, 1),
		plan("standard", "Standard Plan", 249, types.BillingCycleMonthly, models.PlanFeatures{
			Screens: 2, Quality: types.VideoQuality720p, Downloads: 5, OfflineViewing: true, PrioritySupport: true,
		}, true, 0, false, 2),
		plan("premium", "Premium Plan", 399, types.BillingCycleMonthly, models.PlanFeatures{
			Screens: 4, Quality: types.VideoQuality4K, OfflineViewing: true, PrioritySupport: true,
			PersonalizedRecommendations: true, TVAccess: true,
		}, false, 0, false, 3),
		plan("student", "Student Plan", 59, types.BillingCycleMonthly, models.PlanFeatures{
			Screens: 1, Quality: types.VideoQuality720p, Downloads: 2,
		}, false, 0, true, 4),
		plan("annual-standard", "Annual Plan (Standard)", 999, types.BillingCycleYearly, models.PlanFeatures{
			Screens: 2, Quality: types.VideoQuality720p, Downloads: 5, OfflineViewing: true, PrioritySupport: true,
		}, false, 20, false, 5),
	}
}

// Seed inserts plans whose name is not present yet and returns how many were
// created. Existing plans are left untouched.
func (s *Service) Seed(ctx context.Context, plans []*models.Plan) (int, error) {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range plans {
			var existing models.Plan
			err := tx.Unscoped().Where("name = ?", p.Name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up plan %s: %w", p.Name, err)
			}
			if err := validatePlan(p); err != nil {
				return fmt.Errorf("seed plan %s: %w", p.Name, err)
			}
			if p.ID == "" {
				p.ID = tool.GenerateUUIDV7()
			}
			if err := tx.Create(p).Error; err != nil {
				return fmt.Errorf("failed to create plan %s: %w", p.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logctx.FromCtx(ctx, s.log).Infow("plans_seeded", "created", created, "total", len(plans))
	return created, nil
}
