package subscription

import (
	"context"

	"github.com/fatflowers/streambox/internal/app/service/events"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/types"
)

// afterCommit runs the post-commit side effects off the request path.
func (s *Service) afterCommit(ctx context.Context, changes []change) {
	if len(changes) == 0 {
		return
	}
	go s.handleSubscriptionChange(context.WithoutCancel(ctx), changes)
}

func (s *Service) handleSubscriptionChange(ctx context.Context, changes []change) {
	log := logctx.FromCtx(ctx, s.log)
	for _, c := range changes {
		var from types.SubscriptionStatus
		if c.before != nil {
			from = c.before.Status
		}
		s.metrics.Transition(string(from), string(c.after.Status), string(c.reason))

		if s.publisher == nil {
			continue
		}
		evt := events.SubscriptionEvent{
			SubscriptionID: c.after.ID,
			UserID:         c.after.UserID,
			PlanID:         c.after.PlanID,
			From:           from,
			To:             c.after.Status,
			Reason:         c.reason,
			BillingCycle:   c.after.BillingCycle,
			EndDate:        c.after.EndDate,
			Amount:         c.after.Amount,
			Currency:       c.after.Currency,
			OccurredAt:     c.after.UpdatedAt,
			TraceID:        logctx.TraceID(ctx),
		}
		if err := s.publisher.Publish(ctx, routingKey(c), evt); err != nil {
			log.Warnw("failed to publish subscription event", "subscription_id", c.after.ID, "reason", c.reason, "error", err)
		}
	}
}
