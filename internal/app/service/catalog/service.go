package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
	"github.com/fatflowers/streambox/pkg/types"
)

const DefaultCurrency = "INR"

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// PlanInput is the full set of writable plan fields.
type PlanInput struct {
	Name         string              `json:"name"`
	DisplayName  string              `json:"display_name"`
	Description  string              `json:"description"`
	Price        decimal.Decimal     `json:"price" swaggertype:"string"`
	Currency     string              `json:"currency"`
	BillingCycle types.BillingCycle  `json:"billing_cycle"`
	Features     models.PlanFeatures `json:"features"`
	IsActive     *bool               `json:"is_active"`
	IsPopular    bool                `json:"is_popular"`
	Discount     int                 `json:"discount"`
	StudentOnly  bool                `json:"student_only"`
	SortOrder    int                 `json:"sort_order"`
}

// PlanPatch updates only the fields that are set.
type PlanPatch struct {
	DisplayName  *string              `json:"display_name"`
	Description  *string              `json:"description"`
	Price        *decimal.Decimal     `json:"price" swaggertype:"string"`
	Currency     *string              `json:"currency"`
	BillingCycle *types.BillingCycle  `json:"billing_cycle"`
	Features     *models.PlanFeatures `json:"features"`
	IsActive     *bool                `json:"is_active"`
	IsPopular    *bool                `json:"is_popular"`
	Discount     *int                 `json:"discount"`
	StudentOnly  *bool                `json:"student_only"`
	SortOrder    *int                 `json:"sort_order"`
}

// ListActive returns purchasable plans ordered by sort order, then price.
func (s *Service) ListActive(ctx context.Context) ([]*models.Plan, error) {
	var plans []*models.Plan
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order asc").Order("price asc").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// ListAll includes inactive plans; deleted plans are excluded.
func (s *Service) ListAll(ctx context.Context, caller *auth.Caller) ([]*models.Plan, error) {
	if err := auth.Authorize(caller, auth.ActionPlansManage); err != nil {
		return nil, err
	}
	var plans []*models.Plan
	if err := s.db.WithContext(ctx).Order("sort_order asc").Order("price asc").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// Get returns a plan that has not been deleted.
func (s *Service) Get(ctx context.Context, id string) (*models.Plan, error) {
	return getPlan(s.db.WithContext(ctx), id)
}

// GetTx is Get inside an existing transaction.
func (s *Service) GetTx(tx *gorm.DB, id string) (*models.Plan, error) {
	return getPlan(tx, id)
}

func getPlan(db *gorm.DB, id string) (*models.Plan, error) {
	if id == "" {
		return nil, apperr.Validation("plan id is required")
	}
	var plan models.Plan
	if err := db.Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "plan %s not found", id)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (s *Service) Create(ctx context.Context, caller *auth.Caller, in *PlanInput) (*models.Plan, error) {
	if err := auth.Authorize(caller, auth.ActionPlansManage); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, apperr.Validation("plan is required")
	}
	plan := &models.Plan{
		ID:           tool.GenerateUUIDV7(),
		Name:         strings.TrimSpace(in.Name),
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Description:  in.Description,
		Price:        in.Price,
		Currency:     in.Currency,
		BillingCycle: in.BillingCycle,
		Features:     datatypes.NewJSONType(in.Features),
		IsActive:     in.IsActive == nil || *in.IsActive,
		IsPopular:    in.IsPopular,
		Discount:     in.Discount,
		Eligibility:  models.PlanEligibility{StudentEmail: in.StudentOnly},
		SortOrder:    in.SortOrder,
	}
	if plan.Currency == "" {
		plan.Currency = DefaultCurrency
	}
	if plan.BillingCycle == "" {
		plan.BillingCycle = types.BillingCycleMonthly
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("plan name %q already exists", plan.Name)
		}
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("plan_created", "plan_id", plan.ID, "name", plan.Name, "actor", caller.ID)
	return plan, nil
}

func (s *Service) Update(ctx context.Context, caller *auth.Caller, id string, patch *PlanPatch) (*models.Plan, error) {
	if err := auth.Authorize(caller, auth.ActionPlansManage); err != nil {
		return nil, err
	}
	if patch == nil {
		return nil, apperr.Validation("patch is required")
	}
	var plan *models.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = getPlan(tx, id)
		if err != nil {
			return err
		}
		applyPatch(plan, patch)
		if err := validatePlan(plan); err != nil {
			return err
		}
		return tx.Save(plan).Error
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("plan_updated", "plan_id", plan.ID, "actor", caller.ID)
	return plan, nil
}

func applyPatch(plan *models.Plan, p *PlanPatch) {
	if p.DisplayName != nil {
		plan.DisplayName = strings.TrimSpace(*p.DisplayName)
	}
	if p.Description != nil {
		plan.Description = *p.Description
	}
	if p.Price != nil {
		plan.Price = *p.Price
	}
	if p.Currency != nil {
		plan.Currency = *p.Currency
	}
	if p.BillingCycle != nil {
		plan.BillingCycle = *p.BillingCycle
	}
	if p.Features != nil {
		plan.Features = datatypes.NewJSONType(*p.Features)
	}
	if p.IsActive != nil {
		plan.IsActive = *p.IsActive
	}
	if p.IsPopular != nil {
		plan.IsPopular = *p.IsPopular
	}
	if p.Discount != nil {
		plan.Discount = *p.Discount
	}
	if p.StudentOnly != nil {
		plan.Eligibility.StudentEmail = *p.StudentOnly
	}
	if p.SortOrder != nil {
		plan.SortOrder = *p.SortOrder
	}
}

// Delete soft-deletes a plan. Plans referenced by a live subscription cannot
// be deleted; deactivate them instead.
func (s *Service) Delete(ctx context.Context, caller *auth.Caller, id string) error {
	if err := auth.Authorize(caller, auth.ActionPlansManage); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getPlan(tx, id); err != nil {
			return err
		}
		var live int64
		if err := tx.Model(&models.Subscription{}).
			Where("plan_id = ? AND status IN ?", id, types.LiveSubscriptionStatuses).
			Count(&live).Error; err != nil {
			return fmt.Errorf("failed to count live subscriptions: %w", err)
		}
		if live > 0 {
			return apperr.Conflict("plan %s has %d live subscriptions", id, live)
		}
		return tx.Delete(&models.Plan{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("plan_deleted", "plan_id", id, "actor", caller.ID)
	return nil
}

func validatePlan(p *models.Plan) error {
	f := p.Features.Data()
	switch {
	case p.Name == "":
		return apperr.Validation("name is required")
	case p.DisplayName == "":
		return apperr.Validation("display_name is required")
	case !p.Price.IsPositive():
		return apperr.Validation("price must be positive")
	case p.BillingCycle != types.BillingCycleMonthly && p.BillingCycle != types.BillingCycleYearly:
		return apperr.Validation("unsupported billing cycle: %q", p.BillingCycle)
	case len(p.Currency) != 3:
		return apperr.Validation("currency must be an ISO 4217 code")
	case f.Screens < 1:
		return apperr.Validation("features.screens must be at least 1")
	case !f.Quality.Valid():
		return apperr.Validation("unsupported video quality: %q", f.Quality)
	case f.Downloads < 0:
		return apperr.Validation("features.downloads must not be negative")
	case p.Discount < 0 || p.Discount > 100:
		return apperr.Validation("discount must be within [0, 100]")
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
