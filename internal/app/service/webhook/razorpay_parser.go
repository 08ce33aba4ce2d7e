package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/types"
)

const EventPaymentCaptured = "payment.captured"

type RazorpayPaymentEntity struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Method   string            `json:"method"`
	Email    string            `json:"email"`
	Notes    map[string]string `json:"notes"`
}

type RazorpayEvent struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment struct {
			Entity RazorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

type RazorpayNotificationParser struct {
	Event *RazorpayEvent
}

func NewRazorpayNotificationParser(body []byte) (*RazorpayNotificationParser, error) {
	var evt RazorpayEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed webhook body")
	}
	if evt.Event == "" {
		return nil, apperr.Validation("webhook event is missing")
	}
	return &RazorpayNotificationParser{Event: &evt}, nil
}

func (p *RazorpayNotificationParser) GetProvider(context.Context) types.PaymentMethod {
	return types.PaymentMethodRazorpay
}

func (p *RazorpayNotificationParser) GetEvent(context.Context) string { return p.Event.Event }

func (p *RazorpayNotificationParser) payment() *RazorpayPaymentEntity {
	return &p.Event.Payload.Payment.Entity
}

func (p *RazorpayNotificationParser) GetUserID(context.Context) string {
	return p.payment().Notes["userId"]
}

func (p *RazorpayNotificationParser) GetOrderID(context.Context) string { return p.payment().OrderID }

func (p *RazorpayNotificationParser) GetPaymentID(context.Context) string { return p.payment().ID }

// GetActivation reads the order notes written at order creation.
func (p *RazorpayNotificationParser) GetActivation(ctx context.Context) (*subscription.ActivateInput, error) {
	if p.Event.Event != EventPaymentCaptured {
		return nil, nil
	}
	pay := p.payment()
	if pay.ID == "" {
		return nil, apperr.Validation("payment id is missing")
	}
	userID, planID := pay.Notes["userId"], pay.Notes["planId"]
	if userID == "" || planID == "" {
		return nil, apperr.Validation("payment %s has no planId/userId notes", pay.ID)
	}
	cycle, err := types.ParseBillingCycle(pay.Notes["billingCycle"])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "payment %s", pay.ID)
	}
	return &subscription.ActivateInput{
		UserID:        userID,
		PlanID:        planID,
		BillingCycle:  cycle,
		PaymentMethod: p.GetProvider(ctx),
		OrderID:       pay.OrderID,
		PaymentID:     pay.ID,
		Reason:        types.SubscriptionChangeReasonWebhook,
		Actor:         fmt.Sprintf("webhook:%s", p.GetProvider(ctx)),
	}, nil
}

func (p *RazorpayNotificationParser) GetData(context.Context) any { return p.Event }
