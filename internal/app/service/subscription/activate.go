package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/app/service/gateway"
	"github.com/fatflowers/streambox/internal/app/service/pricing"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
	"github.com/fatflowers/streambox/pkg/types"
)

type VerifyRequest struct {
	OrderID       string              `json:"order_id"`
	PaymentID     string              `json:"payment_id"`
	Signature     string              `json:"signature"`
	PlanID        string              `json:"plan_id"`
	BillingCycle  string              `json:"billing_cycle"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
}

// ActivateInput describes a payment that has already been authenticated.
type ActivateInput struct {
	UserID        string
	PlanID        string
	BillingCycle  types.BillingCycle
	PaymentMethod types.PaymentMethod
	OrderID       string
	PaymentID     string
	Reason        types.SubscriptionChangeReason
	// Actor is recorded in the change log.
	Actor string
}

// VerifyAndActivate authenticates a checkout callback and materializes the
// subscription. A bad signature changes nothing.
func (s *Service) VerifyAndActivate(ctx context.Context, caller *auth.Caller, req *VerifyRequest) (*models.Subscription, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsOwn); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.Validation("request body is required")
	}
	start := time.Now()
	defer s.metrics.ObserveSince("verify_payment", string(req.PaymentMethod), start)

	data, _ := json.Marshal(req)
	userID := caller.ID
	plog := &models.PaymentLog{
		Kind:      models.PaymentLogKindVerify,
		Provider:  req.PaymentMethod,
		UserID:    &userID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Data:      data,
		Status:    models.PaymentLogStatusReceived,
	}
	if plog.Provider == "" {
		plog.Provider = types.PaymentMethodRazorpay
	}
	s.paymentLog.Save(ctx, plog)

	sub, err := s.verifyAndActivate(ctx, caller, req)
	if err != nil {
		s.paymentLog.Finish(ctx, plog, nil, err)
		logctx.FromCtx(ctx, s.log).Warnw("payment verification failed",
			"order_id", req.OrderID, "payment_id", req.PaymentID, "error", err)
		return nil, err
	}
	s.paymentLog.Finish(ctx, plog, map[string]string{"subscription_id": sub.ID}, nil)
	return sub, nil
}

func (s *Service) verifyAndActivate(ctx context.Context, caller *auth.Caller, req *VerifyRequest) (*models.Subscription, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, apperr.Validation("order_id, payment_id and signature are required")
	}
	if req.PlanID == "" {
		return nil, apperr.Validation("plan_id is required")
	}
	cycle, err := types.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid billing cycle")
	}
	gw, err := s.gateways.Get(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := gw.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		return nil, err
	}

	// The signature only covers order and payment ids. The purchase terms
	// come from the order, never from the request alone.
	plan, err := s.catalog.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	amount, err := s.pricing.Amount(plan, cycle)
	if err != nil {
		return nil, err
	}
	if err := gw.VerifyOrder(ctx, req.OrderID, gateway.OrderRequest{
		Amount:   pricing.MinorUnits(amount),
		Currency: plan.Currency,
		Metadata: orderMetadata(plan.ID, caller.ID, cycle),
	}); err != nil {
		return nil, err
	}

	sub, err := s.Activate(ctx, &ActivateInput{
		UserID:        caller.ID,
		PlanID:        plan.ID,
		BillingCycle:  cycle,
		PaymentMethod: gw.Method(),
		OrderID:       req.OrderID,
		PaymentID:     req.PaymentID,
		Reason:        types.SubscriptionChangeReasonPurchase,
		Actor:         caller.ID,
	})
	if apperr.KindOf(err) == apperr.KindConflict {
		// The webhook may have applied this payment first.
		if prior := s.appliedPayment(ctx, gw.Method(), req.PaymentID); prior != nil &&
			prior.UserID == caller.ID && prior.PlanID == plan.ID && prior.BillingCycle == cycle {
			return prior, nil
		}
	}
	return sub, err
}

// appliedPayment returns the subscription a payment activated, or nil.
func (s *Service) appliedPayment(ctx context.Context, method types.PaymentMethod, paymentID string) *models.Subscription {
	var sub models.Subscription
	err := withPlan(s.db.WithContext(ctx)).
		Where("payment_method = ? AND payment_id = ?", method, paymentID).
		First(&sub).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logctx.FromCtx(ctx, s.log).Errorw("failed to load applied payment", "payment_id", paymentID, "error", err)
		}
		return nil
	}
	return &sub
}

// Activate creates the active subscription for an authenticated payment.
// Dates and amount are always computed here. A payment that has already
// activated a subscription fails with Conflict; VerifyAndActivate turns that
// into the existing subscription when it is the same purchase.
func (s *Service) Activate(ctx context.Context, in *ActivateInput) (*models.Subscription, error) {
	if in == nil || in.UserID == "" || in.PaymentID == "" {
		return nil, apperr.Validation("user id and payment id are required")
	}
	if in.Reason == "" {
		in.Reason = types.SubscriptionChangeReasonPurchase
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = types.PaymentMethodRazorpay
	}

	var sub *models.Subscription
	var changes []change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.catalog.GetTx(tx, in.PlanID)
		if err != nil {
			return err
		}
		amount, err := s.pricing.Amount(plan, in.BillingCycle)
		if err != nil {
			return err
		}

		if _, err := s.lockUser(ctx, tx, in.UserID); err != nil {
			return err
		}

		var used int64
		if err := tx.Model(&models.Subscription{}).
			Where("payment_method = ? AND payment_id = ?", in.PaymentMethod, in.PaymentID).
			Count(&used).Error; err != nil {
			return fmt.Errorf("failed to check payment: %w", err)
		}
		if used > 0 {
			return apperr.Conflict("payment %s has already been applied", in.PaymentID)
		}

		now := s.now()
		superseded, err := s.supersede(ctx, tx, in.UserID, now, in.Actor)
		if err != nil {
			return err
		}
		changes = append(changes, superseded...)

		sub = &models.Subscription{
			ID:            tool.GenerateUUIDV7(),
			UserID:        in.UserID,
			PlanID:        plan.ID,
			Status:        types.SubscriptionStatusActive,
			BillingCycle:  in.BillingCycle,
			StartDate:     now,
			EndDate:       periodEnd(now, in.BillingCycle),
			Amount:        amount,
			Currency:      plan.Currency,
			PaymentMethod: in.PaymentMethod,
			PaymentID:     in.PaymentID,
			OrderID:       in.OrderID,
			AutoRenewal:   true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		created := change{after: sub, reason: in.Reason}
		if err := s.writeLog(ctx, tx, created, in.Actor); err != nil {
			return err
		}
		changes = append(changes, created)

		paymentRef := in.PaymentID
		if err := s.mirrorUser(ctx, tx, in.UserID,
			snapshotOf(sub, types.UserSubscriptionStatusActive),
			map[string]any{"payment_customer_id": &paymentRef},
		); err != nil {
			return err
		}
		sub.Plan = plan
		return nil
	})
	if err != nil {
		return nil, translate(err, "activate subscription")
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_activated",
		"subscription_id", sub.ID, "user_id", sub.UserID, "plan_id", sub.PlanID,
		"billing_cycle", sub.BillingCycle, "end_date", sub.EndDate, "reason", in.Reason)
	s.afterCommit(ctx, changes)
	return sub, nil
}

// supersede retires every prior active, pending or cancelled subscription of
// the user so that the new one is the only live record.
func (s *Service) supersede(ctx context.Context, tx *gorm.DB, userID string, now time.Time, actor string) ([]change, error) {
	var prior []*models.Subscription
	if err := tx.Where("user_id = ? AND status IN ?", userID, []types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPending,
		types.SubscriptionStatusCancelled,
	}).Find(&prior).Error; err != nil {
		return nil, fmt.Errorf("failed to load prior subscriptions: %w", err)
	}

	changes := make([]change, 0, len(prior))
	for _, p := range prior {
		before := p.Snapshot()
		p.Status = types.SubscriptionStatusExpired
		p.AutoRenewal = false
		p.UpdatedAt = now
		if err := tx.Save(p).Error; err != nil {
			return nil, fmt.Errorf("failed to supersede subscription %s: %w", p.ID, err)
		}
		c := change{before: before, after: p, reason: types.SubscriptionChangeReasonSuperseded}
		if err := s.writeLog(ctx, tx, c, actor); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, nil
}
