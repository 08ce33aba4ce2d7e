package subscription

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/app/service/gateway"
	"github.com/fatflowers/streambox/internal/app/service/pricing"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
	"github.com/fatflowers/streambox/pkg/types"
)

type CreateOrderRequest struct {
	PlanID        string              `json:"plan_id"`
	BillingCycle  string              `json:"billing_cycle"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
}

// OrderHandle is what the checkout client needs to collect the payment.
type OrderHandle struct {
	OrderID string `json:"order_id"`
	// Amount in minor units (paise for INR).
	Amount       int64               `json:"amount"`
	AmountMajor  decimal.Decimal     `json:"amount_major" swaggertype:"string"`
	Currency     string              `json:"currency"`
	BillingCycle types.BillingCycle  `json:"billing_cycle"`
	Receipt      string              `json:"receipt"`
	KeyID        string              `json:"key_id"`
	Method       types.PaymentMethod `json:"payment_method"`
	Plan         *models.Plan        `json:"plan"`
}

// CreateOrder prices the plan and registers a gateway order. Nothing is
// persisted: the order is provisional until the payment is verified.
func (s *Service) CreateOrder(ctx context.Context, caller *auth.Caller, req *CreateOrderRequest) (*OrderHandle, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsOwn); err != nil {
		return nil, err
	}
	if req == nil || req.PlanID == "" {
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

	plan, err := s.catalog.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, apperr.Validation("plan %s is not available for purchase", plan.Name)
	}
	if plan.Eligibility.StudentEmail && !s.isStudentEmail(caller.Email) {
		return nil, apperr.Forbidden("plan %s requires a student email address", plan.Name)
	}

	amount, err := s.pricing.Amount(plan, cycle)
	if err != nil {
		return nil, err
	}
	minor := pricing.MinorUnits(amount)

	order, err := gw.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   minor,
		Currency: plan.Currency,
		Receipt:  tool.GenerateReceipt(s.now()),
		Metadata: orderMetadata(plan.ID, caller.ID, cycle),
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("order_created",
		"order_id", order.ID, "plan_id", plan.ID, "billing_cycle", cycle, "amount", minor, "currency", plan.Currency)

	return &OrderHandle{
		OrderID:      order.ID,
		Amount:       minor,
		AmountMajor:  amount,
		Currency:     plan.Currency,
		BillingCycle: cycle,
		Receipt:      order.Receipt,
		KeyID:        order.KeyID,
		Method:       gw.Method(),
		Plan:         plan,
	}, nil
}

// orderMetadata is attached to every gateway order; verification and the
// webhook read the purchase back from it.
func orderMetadata(planID, userID string, cycle types.BillingCycle) map[string]string {
	return map[string]string{
		"planId":       planID,
		"userId":       userID,
		"billingCycle": string(cycle),
	}
}

func (s *Service) isStudentEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at:]
	for _, suffix := range s.cfg.Eligibility.StudentEmailSuffixes {
		if suffix != "" && strings.HasSuffix(domain, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
