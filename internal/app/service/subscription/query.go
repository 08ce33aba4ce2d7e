package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/tool"
	"github.com/fatflowers/streambox/pkg/types"
)

// CurrentSubscription is the caller-facing view of the live subscription.
// Status is "free" when there is none, "cancelled" while a cancelled record
// still covers its paid period, and "expired" when the live record's end date
// has passed but the sweep has not run yet.
type CurrentSubscription struct {
	Status       string               `json:"status"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

const statusFree = string(types.UserSubscriptionStatusFree)

func withPlan(db *gorm.DB) *gorm.DB {
	// Deleted plans still resolve for subscriptions that reference them.
	return db.Preload("Plan", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() })
}

func (s *Service) GetCurrent(ctx context.Context, userID string) (*CurrentSubscription, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "authentication required")
	}
	now := s.now()
	var sub models.Subscription
	err := withPlan(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Where("status IN ? OR (status = ? AND end_date > ?)",
			types.LiveSubscriptionStatuses, types.SubscriptionStatusCancelled, now).
		Order("created_at desc").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CurrentSubscription{Status: statusFree}, nil
		}
		return nil, fmt.Errorf("failed to get current subscription: %w", err)
	}
	status := string(sub.Status)
	if !sub.EndDate.After(now) {
		status = string(types.SubscriptionStatusExpired)
	}
	return &CurrentSubscription{Status: status, Subscription: &sub}, nil
}

// History returns every subscription of the user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*models.Subscription, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "authentication required")
	}
	subs := make([]*models.Subscription, 0)
	if err := withPlan(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscription history: %w", err)
	}
	return subs, nil
}

// Get returns one subscription by id for an admin.
func (s *Service) Get(ctx context.Context, caller *auth.Caller, id string) (*models.Subscription, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsAdmin); err != nil {
		return nil, err
	}
	var sub models.Subscription
	if err := withPlan(s.db.WithContext(ctx)).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "subscription %s not found", id)
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

type ScanRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	SortBy  string                `json:"sort_by"`
	SortAsc bool                  `json:"sort_asc"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type ScanResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

var (
	scanFilterFields = []string{"id", "user_id", "plan_id", "status", "billing_cycle", "payment_method", "payment_id", "order_id", "start_date", "end_date", "created_at"}
	scanSortFields   = []string{"created_at", "start_date", "end_date", "amount"}
)

// Scan lists subscriptions for admins with filters and pagination.
func (s *Service) Scan(ctx context.Context, caller *auth.Caller, req *ScanRequest) (*ScanResponse, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsAdmin); err != nil {
		return nil, err
	}
	if req == nil {
		req = &ScanRequest{}
	}
	if err := types.ValidateFilters(req.Filters, scanFilterFields); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid filters")
	}
	if req.SortBy == "" {
		req.SortBy = "created_at"
	}
	if !slices.Contains(scanSortFields, req.SortBy) {
		return nil, apperr.Validation("unsupported sort field: %s", req.SortBy)
	}
	if req.Size <= 0 || req.Size > 200 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Subscription{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	tx = tx.Session(&gorm.Session{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	items := make([]*models.Subscription, 0)
	if err := withPlan(tx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: req.SortBy}, Desc: !req.SortAsc}).
		Limit(req.Size).Offset(req.From).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}
	return &ScanResponse{Items: items, Total: total}, nil
}

// SnapshotDaily records the live subscriptions of a day for the daily
// statistics. Re-running it for the same day is a no-op.
func (s *Service) SnapshotDaily(ctx context.Context, day time.Time) (int, error) {
	date := day.UTC().Format(time.DateOnly)
	var live []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("status IN ? AND end_date > ?", types.LiveSubscriptionStatuses, day).
		Find(&live).Error; err != nil {
		return 0, fmt.Errorf("failed to load live subscriptions: %w", err)
	}
	if len(live) == 0 {
		return 0, nil
	}
	rows := make([]*models.SubscriptionDailySnapshot, 0, len(live))
	for _, sub := range live {
		rows = append(rows, &models.SubscriptionDailySnapshot{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			PlanID:         sub.PlanID,
			Status:         sub.Status,
			EndDate:        sub.EndDate,
			Amount:         sub.Amount,
			Currency:       sub.Currency,
			SnapshotDate:   date,
		})
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 200)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to save daily snapshot: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
