package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/types"
)

// Cancel stops auto renewal of the caller's active subscription. The
// entitlement runs until end_date. Cancelling twice fails with NotFound.
func (s *Service) Cancel(ctx context.Context, caller *auth.Caller) (*models.Subscription, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsOwn); err != nil {
		return nil, err
	}

	var sub models.Subscription
	var c change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, tx, caller.ID); err != nil {
			return err
		}
		now := s.now()
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ? AND end_date > ?", caller.ID, types.SubscriptionStatusActive, now).
			Order("created_at desc").
			First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("no active subscription found")
			}
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		before := sub.Snapshot()
		cancelledBy := caller.ID
		sub.Status = types.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		sub.CancelledBy = &cancelledBy
		sub.AutoRenewal = false
		sub.UpdatedAt = now
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		c = change{before: before, after: &sub, reason: types.SubscriptionChangeReasonCancel}
		if err := s.writeLog(ctx, tx, c, caller.ID); err != nil {
			return err
		}
		return s.mirrorUser(ctx, tx, caller.ID, snapshotOf(&sub, types.UserSubscriptionStatusCancelled), nil)
	})
	if err != nil {
		return nil, translate(err, "cancel subscription")
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_cancelled", "subscription_id", sub.ID, "end_date", sub.EndDate)
	s.afterCommit(ctx, []change{c})
	return &sub, nil
}

// Reactivate restores auto renewal on the caller's most recent subscription
// when it is cancelled and its period has not elapsed.
func (s *Service) Reactivate(ctx context.Context, caller *auth.Caller) (*models.Subscription, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsOwn); err != nil {
		return nil, err
	}

	var sub models.Subscription
	var c change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, tx, caller.ID); err != nil {
			return err
		}
		now := s.now()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", caller.ID).
			Order("created_at desc").Order("id desc").
			First(&sub).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load subscription: %w", err)
		}
		if err != nil || sub.Status != types.SubscriptionStatusCancelled || !sub.EndDate.After(now) {
			return apperr.NotFound("no cancelled subscription found")
		}

		before := sub.Snapshot()
		sub.Status = types.SubscriptionStatusActive
		sub.AutoRenewal = true
		sub.CancelledAt = nil
		sub.CancelledBy = nil
		sub.UpdatedAt = now
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		c = change{before: before, after: &sub, reason: types.SubscriptionChangeReasonReactivate}
		if err := s.writeLog(ctx, tx, c, caller.ID); err != nil {
			return err
		}
		return s.mirrorUser(ctx, tx, caller.ID, snapshotOf(&sub, types.UserSubscriptionStatusActive), nil)
	})
	if err != nil {
		return nil, translate(err, "reactivate subscription")
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_reactivated", "subscription_id", sub.ID, "end_date", sub.EndDate)
	s.afterCommit(ctx, []change{c})
	return &sub, nil
}

// ExpireDue moves every live subscription whose end_date is not after now to
// expired, one transaction per subscription, and returns how many moved.
// A failure on one subscription does not stop the sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	log := logctx.FromCtx(ctx, s.log)
	start := time.Now()
	defer s.metrics.ObserveSince("expire_due", "sweep", start)

	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status IN ? AND end_date <= ?", types.LiveSubscriptionStatuses, now).
		Order("end_date asc").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find due subscriptions: %w", err)
	}

	var expired int
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.expireOne(ctx, id, now)
		if err != nil {
			log.Errorw("failed to expire subscription", "subscription_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}
	log.Infow("expiry_sweep_done", "due", len(ids), "expired", expired)
	return expired, errors.Join(errs...)
}

func (s *Service) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	var sub models.Subscription
	var c change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&sub).Error; err != nil {
			return err
		}
		// Re-check under the lock: a concurrent activation may have moved it.
		if !sub.Status.IsLive() || sub.EndDate.After(now) {
			return nil
		}
		before := sub.Snapshot()
		sub.Status = types.SubscriptionStatusExpired
		sub.AutoRenewal = false
		sub.UpdatedAt = s.now()
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		c = change{before: before, after: &sub, reason: types.SubscriptionChangeReasonExpire}
		if err := s.writeLog(ctx, tx, c, "system"); err != nil {
			return err
		}
		return s.mirrorUser(ctx, tx, sub.UserID, snapshotOf(&sub, types.UserSubscriptionStatusExpired), nil)
	})
	if err != nil {
		return false, err
	}
	if c.after == nil {
		return false, nil
	}
	s.afterCommit(ctx, []change{c})
	return true, nil
}
