package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/streambox/pkg/types"
)

// Routing keys on the subscriptions exchange.
const (
	RoutingKeyActivated   = "subscription.activated"
	RoutingKeyCancelled   = "subscription.cancelled"
	RoutingKeyReactivated = "subscription.reactivated"
	RoutingKeyExpired     = "subscription.expired"
)

// SubscriptionEvent is published after a lifecycle transition commits.
type SubscriptionEvent struct {
	SubscriptionID string                         `json:"subscription_id"`
	UserID         string                         `json:"user_id"`
	PlanID         string                         `json:"plan_id"`
	From           types.SubscriptionStatus       `json:"from,omitempty"`
	To             types.SubscriptionStatus       `json:"to"`
	Reason         types.SubscriptionChangeReason `json:"reason"`
	BillingCycle   types.BillingCycle             `json:"billing_cycle"`
	EndDate        time.Time                      `json:"end_date"`
	Amount         decimal.Decimal                `json:"amount"`
	Currency       string                         `json:"currency"`
	OccurredAt     time.Time                      `json:"occurred_at"`
	TraceID        string                         `json:"trace_id,omitempty"`
}

// Publisher is implemented by types that can publish lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}
