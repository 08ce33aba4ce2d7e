package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/service/webhook"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/response"
	"github.com/fatflowers/streambox/pkg/types"
)

const maxWebhookBody = 1 << 20

// @Summary      Razorpay webhook
// @Description  Reconciles payment.captured events. The X-Razorpay-Signature header must carry the HMAC-SHA256 of the raw body.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Razorpay-Signature header string true "Webhook signature"
// @Param        payload body webhook.RazorpayEvent true "Razorpay event"
// @Success      200  {object}  handlers.RespWebhook
// @Router       /api/v1/payment/webhook/razorpay [post]
func ApiRazorpayWebhook(h *webhook.NotificationHandler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := logctx.FromGin(c, log)
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			badRequest(c, err)
			return
		}
		l.Infow("webhook_razorpay_received", "bytes", len(body))

		res, err := h.HandleNotification(c.Request.Context(), types.PaymentMethodRazorpay, body, c.GetHeader("X-Razorpay-Signature"))
		if err != nil {
			l.Errorw("webhook_razorpay_handle_error", "error", err)
			// 5xx makes the provider redeliver; rejected deliveries are final.
			status := http.StatusOK
			if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindUnavailable {
				status = http.StatusInternalServerError
			}
			c.JSON(status, response.FromError(err))
			return
		}
		l.Infow("webhook_razorpay_handled", "event", res.Event, "outcome", res.Outcome)
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *webhook.NotificationHandler, log *zap.SugaredLogger) {
	r.POST("/razorpay", ApiRazorpayWebhook(h, log))
}
