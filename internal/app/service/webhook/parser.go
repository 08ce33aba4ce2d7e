package webhook

import (
	"context"

	"github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/pkg/types"
)

// NotificationParser extracts what reconciliation needs from a provider
// webhook body.
type NotificationParser interface {
	GetProvider(ctx context.Context) types.PaymentMethod
	GetEvent(ctx context.Context) string
	GetUserID(ctx context.Context) string
	GetOrderID(ctx context.Context) string
	GetPaymentID(ctx context.Context) string
	// GetActivation returns nil for events that do not activate anything.
	GetActivation(ctx context.Context) (*subscription.ActivateInput, error)
	GetData(ctx context.Context) any
}
