package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/streambox/internal/app/service/events"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
	"github.com/fatflowers/streambox/pkg/types"
)

// change is one committed transition, handed to the post-commit hook.
type change struct {
	before *models.Subscription
	after  *models.Subscription
	reason types.SubscriptionChangeReason
}

// periodEnd adds one calendar month or year. Month overflow normalizes the
// way time.AddDate does (Jan 31 + 1 month = Mar 3 or Mar 2).
func periodEnd(start time.Time, cycle types.BillingCycle) time.Time {
	if cycle == types.BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// lockUser loads the user row FOR UPDATE, creating a free user when the
// credential subject has never been seen locally.
func (s *Service) lockUser(ctx context.Context, tx *gorm.DB, userID string) (*models.User, error) {
	seed := &models.User{
		ID:   userID,
		Role: types.UserRoleUser,
		Subscription: models.UserSubscription{
			Status:      types.UserSubscriptionStatusFree,
			AutoRenewal: true,
		},
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	var u models.User
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &u, nil
}

// mirrorUser writes the denormalized snapshot. Map updates keep false and nil
// values, which struct updates would skip.
func (s *Service) mirrorUser(ctx context.Context, tx *gorm.DB, userID string, snap models.UserSubscription, extra map[string]any) error {
	updates := map[string]any{
		"subscription_current_plan_id": snap.CurrentPlanID,
		"subscription_status":          snap.Status,
		"subscription_expiry_date":     snap.ExpiryDate,
		"subscription_auto_renewal":    snap.AutoRenewal,
		"updated_at":                   s.now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update user snapshot: %w", res.Error)
	}
	return nil
}

func snapshotOf(sub *models.Subscription, status types.UserSubscriptionStatus) models.UserSubscription {
	planID := sub.PlanID
	end := sub.EndDate
	return models.UserSubscription{
		CurrentPlanID: &planID,
		Status:        status,
		ExpiryDate:    &end,
		AutoRenewal:   sub.AutoRenewal,
	}
}

// writeLog records a transition in the same transaction as the change.
func (s *Service) writeLog(ctx context.Context, tx *gorm.DB, c change, actor string) error {
	after := c.after.Snapshot()
	log := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		UserID:         after.UserID,
		SubscriptionID: after.ID,
		Reason:         c.reason,
		Before:         datatypes.NewJSONType(c.before.Snapshot()),
		After:          datatypes.NewJSONType(after),
		Extra: datatypes.JSONMap{
			"actor":    actor,
			"trace_id": logctx.TraceID(ctx),
		},
		CreatedAt: s.now(),
	}
	if err := tx.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to save subscription log: %w", err)
	}
	return nil
}

// translate maps storage errors to caller-facing kinds.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindConflict, err, "%s conflicts with an existing subscription", op)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, "%s: record not found", op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func routingKey(c change) string {
	switch c.reason {
	case types.SubscriptionChangeReasonCancel:
		return events.RoutingKeyCancelled
	case types.SubscriptionChangeReasonReactivate:
		return events.RoutingKeyReactivated
	case types.SubscriptionChangeReasonPurchase, types.SubscriptionChangeReasonWebhook:
		return events.RoutingKeyActivated
	}
	return events.RoutingKeyExpired
}
