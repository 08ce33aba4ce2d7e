package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/service/gateway"
	"github.com/fatflowers/streambox/internal/app/service/payment_log"
	"github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/types"
)

type Outcome string

const (
	OutcomeActivated Outcome = "activated"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type Result struct {
	Event          string  `json:"event"`
	Outcome        Outcome `json:"outcome"`
	SubscriptionID string  `json:"subscription_id,omitempty"`
}

// Activator is the part of the lifecycle manager webhooks drive.
type Activator interface {
	Activate(ctx context.Context, in *subscription.ActivateInput) (*models.Subscription, error)
}

type NotificationHandler struct {
	gateways   *gateway.Registry
	paymentLog *payment_log.Service
	activator  Activator
	log        *zap.SugaredLogger
}

func NewNotificationHandler(gateways *gateway.Registry, paymentLog *payment_log.Service, activator Activator, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{gateways: gateways, paymentLog: paymentLog, activator: activator, log: log}
}

func newParser(method types.PaymentMethod, body []byte) (NotificationParser, error) {
	switch method {
	case types.PaymentMethodRazorpay:
		return NewRazorpayNotificationParser(body)
	default:
		return nil, apperr.Validation("unsupported provider: %s", method)
	}
}

// HandleNotification authenticates and reconciles one webhook delivery. A
// payment that already activated a subscription is acknowledged without
// changes, so provider retries are safe.
func (h *NotificationHandler) HandleNotification(ctx context.Context, method types.PaymentMethod, body []byte, signature string) (res *Result, resErr error) {
	log := logctx.FromCtx(ctx, h.log)

	gw, err := h.gateways.Get(method)
	if err != nil {
		return nil, err
	}

	data := body
	if !json.Valid(data) {
		data, _ = json.Marshal(string(body))
	}
	plog := &models.PaymentLog{
		Kind:     models.PaymentLogKindWebhook,
		Provider: gw.Method(),
		Data:     data,
		Status:   models.PaymentLogStatusReceived,
	}
	if err := gw.VerifyWebhookSignature(body, signature); err != nil {
		log.Warnw("webhook signature rejected", "provider", gw.Method(), "error", err)
		h.paymentLog.Save(ctx, plog)
		h.paymentLog.Finish(ctx, plog, nil, err)
		return nil, err
	}

	parser, err := newParser(gw.Method(), body)
	if err != nil {
		h.paymentLog.Save(ctx, plog)
		h.paymentLog.Finish(ctx, plog, nil, err)
		return nil, err
	}
	plog.OrderID = parser.GetOrderID(ctx)
	plog.PaymentID = parser.GetPaymentID(ctx)
	if uid := parser.GetUserID(ctx); uid != "" {
		plog.UserID = lo.ToPtr(uid)
	}
	h.paymentLog.Save(ctx, plog)
	defer func() {
		var out any
		if res != nil {
			out = res
		}
		h.paymentLog.Finish(ctx, plog, out, resErr)
	}()

	res = &Result{Event: parser.GetEvent(ctx), Outcome: OutcomeIgnored}
	in, err := parser.GetActivation(ctx)
	if err != nil {
		return nil, err
	}
	if in == nil {
		log.Infow("webhook_ignored", "event", res.Event)
		return res, nil
	}

	sub, err := h.activator.Activate(ctx, in)
	switch {
	case errors.Is(err, apperr.ErrConflict):
		log.Infow("webhook_duplicate_payment", "payment_id", in.PaymentID)
		res.Outcome = OutcomeDuplicate
		return res, nil
	case err != nil:
		return nil, err
	}
	res.Outcome = OutcomeActivated
	res.SubscriptionID = sub.ID
	return res, nil
}

func newActivator(s *subscription.Service) Activator { return s }

var Module = fx.Options(
	fx.Provide(newActivator, NewNotificationHandler),
)
