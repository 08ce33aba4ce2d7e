package gateway

import (
	"context"

	"go.uber.org/fx"

	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/types"
)

type OrderRequest struct {
	// Amount in minor units.
	Amount   int64
	Currency string
	Receipt  string
	Metadata map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	// KeyID is the public key the checkout client opens the order with.
	KeyID    string
	Metadata map[string]string
}

// Gateway is a payment provider adapter.
type Gateway interface {
	Method() types.PaymentMethod
	// CreateOrder registers a payable order. Provider outages surface as
	// apperr.KindUnavailable.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// FetchOrder loads a previously created order with its metadata.
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	// VerifyOrder checks that orderID was created for exactly the amount,
	// currency and metadata in want. A mismatch is apperr.KindValidation.
	VerifyOrder(ctx context.Context, orderID string, want OrderRequest) error
	// VerifyPaymentSignature checks the checkout callback signature.
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	// VerifyWebhookSignature checks a webhook body against its signature header.
	VerifyWebhookSignature(body []byte, signature string) error
}

// Registry resolves gateways by payment method.
type Registry struct {
	gateways map[types.PaymentMethod]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[types.PaymentMethod]Gateway, len(gws))}
	for _, g := range gws {
		r.gateways[g.Method()] = g
	}
	return r
}

// Get defaults an empty method to razorpay.
func (r *Registry) Get(method types.PaymentMethod) (Gateway, error) {
	if method == "" {
		method = types.PaymentMethodRazorpay
	}
	if !method.Valid() {
		return nil, apperr.Validation("unknown payment method: %s", method)
	}
	g, ok := r.gateways[method]
	if !ok {
		return nil, apperr.Validation("payment method %s is not enabled", method)
	}
	return g, nil
}

func newRegistry(rp *Razorpay) *Registry {
	return NewRegistry(rp)
}

var Module = fx.Options(
	fx.Provide(NewRazorpayFromConfig, newRegistry),
)
