package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/platform/razorpay"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/metrics"
	"github.com/fatflowers/streambox/pkg/types"
)

const sandboxKeyID = "rzp_test_sandbox"

type RazorpayOptions struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	APIBase       string
	Timeout       time.Duration
	// Sandbox creates orders locally without calling the API.
	Sandbox bool
}

type Razorpay struct {
	client        *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
	sandbox       bool
	metrics       *metrics.Business
	log           *zap.SugaredLogger
}

func NewRazorpay(opts RazorpayOptions, m *metrics.Business, log *zap.SugaredLogger) (*Razorpay, error) {
	if opts.KeySecret == "" {
		return nil, errors.New("razorpay key secret is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	g := &Razorpay{
		keyID:         opts.KeyID,
		keySecret:     opts.KeySecret,
		webhookSecret: opts.WebhookSecret,
		sandbox:       opts.Sandbox,
		metrics:       m,
		log:           log,
	}
	if opts.Sandbox {
		if g.keyID == "" {
			g.keyID = sandboxKeyID
		}
		return g, nil
	}
	client, err := razorpay.NewClient(razorpay.ClientOptions{
		KeyID:     opts.KeyID,
		KeySecret: opts.KeySecret,
		APIBase:   opts.APIBase,
		Timeout:   opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	g.client = client
	return g, nil
}

func NewRazorpayFromConfig(cfg *config.Config, m *metrics.Business, log *zap.SugaredLogger) (*Razorpay, error) {
	return NewRazorpay(RazorpayOptions{
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		APIBase:       cfg.Gateway.APIBase,
		Timeout:       cfg.Gateway.Timeout,
		Sandbox:       cfg.Gateway.Sandbox,
	}, m, log)
}

func (g *Razorpay) Method() types.PaymentMethod { return types.PaymentMethodRazorpay }

func (g *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, apperr.Validation("order amount must be positive")
	}
	if g.sandbox {
		return &Order{
			ID:       g.sandboxOrderID(req),
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			KeyID:    g.keyID,
			Metadata: req.Metadata,
		}, nil
	}

	start := time.Now()
	order, err := g.client.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Metadata,
	})
	g.metrics.ObserveSince("gateway", "razorpay_create_order", start)
	if err != nil {
		logctx.FromCtx(ctx, g.log).Errorw("gateway_create_order_failed", "receipt", req.Receipt, "err", err)
		return nil, classify(err)
	}
	return &Order{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		KeyID:    g.keyID,
		Metadata: order.Notes,
	}, nil
}

// FetchOrder is not available in sandbox mode: sandbox orders are never
// stored, VerifyOrder re-derives their ids instead.
func (g *Razorpay) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, apperr.Validation("order id is required")
	}
	if g.sandbox {
		return nil, apperr.New(apperr.KindUnavailable, "sandbox gateway does not store orders")
	}

	start := time.Now()
	order, err := g.client.FetchOrder(ctx, orderID)
	g.metrics.ObserveSince("gateway", "razorpay_fetch_order", start)
	if err != nil {
		var apiErr *razorpay.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusNotFound) {
			return nil, apperr.Wrap(apperr.KindValidation, err, "unknown order %s", orderID)
		}
		logctx.FromCtx(ctx, g.log).Errorw("gateway_fetch_order_failed", "order_id", orderID, "err", err)
		return nil, classify(err)
	}
	return &Order{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		KeyID:    g.keyID,
		Metadata: order.Notes,
	}, nil
}

func (g *Razorpay) VerifyOrder(ctx context.Context, orderID string, want OrderRequest) error {
	if orderID == "" {
		return apperr.Validation("order id is required")
	}
	if g.sandbox {
		if !razorpay.SignatureEqual(g.sandboxOrderID(want), orderID) {
			return apperr.Validation("order %s does not match the requested plan", orderID)
		}
		return nil
	}

	order, err := g.FetchOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Amount != want.Amount || !strings.EqualFold(order.Currency, want.Currency) {
		return apperr.Validation("order %s does not match the requested plan", orderID)
	}
	for k, v := range want.Metadata {
		if order.Metadata[k] != v {
			return apperr.Validation("order %s does not match the requested plan", orderID)
		}
	}
	return nil
}

// sandboxOrderID derives the id from the order terms so VerifyOrder can check
// it without a lookup. The receipt is left out.
func (g *Razorpay) sandboxOrderID(req OrderRequest) string {
	return "order_" + razorpay.OrderFingerprint(g.keySecret, req.Amount, req.Currency, req.Metadata)[:24]
}

func (g *Razorpay) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return apperr.Validation("order id, payment id and signature are required")
	}
	expected := razorpay.PaymentSignature(g.keySecret, orderID, paymentID)
	if !razorpay.SignatureEqual(expected, signature) {
		return apperr.New(apperr.KindInvalidSignature, "payment signature mismatch")
	}
	return nil
}

func (g *Razorpay) VerifyWebhookSignature(body []byte, signature string) error {
	if g.webhookSecret == "" {
		return apperr.New(apperr.KindUnavailable, "webhook secret is not configured")
	}
	if signature == "" {
		return apperr.New(apperr.KindInvalidSignature, "missing webhook signature")
	}
	if !razorpay.SignatureEqual(razorpay.WebhookSignature(g.webhookSecret, body), signature) {
		return apperr.New(apperr.KindInvalidSignature, "webhook signature mismatch")
	}
	return nil
}

// classify maps client failures: timeouts, transport errors, 429 and 5xx are
// unavailable (retryable by the caller); other API answers are internal.
func classify(err error) error {
	var apiErr *razorpay.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() {
			return apperr.Wrap(apperr.KindUnavailable, err, "payment gateway unavailable")
		}
		return apperr.Wrap(apperr.KindInternal, err, "payment gateway rejected order")
	}
	return apperr.Wrap(apperr.KindUnavailable, err, "payment gateway unavailable")
}
