package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	subsvc "github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/internal/app/service/user"
	"github.com/fatflowers/streambox/pkg/response"
)

// @Summary      Current subscription
// @Description  The caller's live subscription, or status "free" when there is none.
// @Tags         Subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespCurrentSubscription
// @Router       /api/v1/subscriptions/current [get]
func ApiCurrentSubscription(svc *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerOf(c)
		if caller == nil {
			fail(c, log, errUnauthenticated)
			return
		}
		cur, err := svc.GetCurrent(c.Request.Context(), caller.ID)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(cur))
	}
}

// @Summary      Subscription history
// @Description  Every subscription of the caller, newest first.
// @Tags         Subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscriptions
// @Router       /api/v1/subscriptions/history [get]
func ApiSubscriptionHistory(svc *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerOf(c)
		if caller == nil {
			fail(c, log, errUnauthenticated)
			return
		}
		subs, err := svc.History(c.Request.Context(), caller.ID)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(subs))
	}
}

// @Summary      Create payment order
// @Description  Prices the plan and opens a gateway order. Nothing is persisted until the payment is verified.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body subscription.CreateOrderRequest true "Plan and billing cycle"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/subscriptions/create_order [post]
func ApiCreateOrder(svc *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		order, err := svc.CreateOrder(c.Request.Context(), callerOf(c), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(order))
	}
}

// @Summary      Verify payment
// @Description  Checks the checkout signature and activates the subscription.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body subscription.VerifyRequest true "Gateway callback fields"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/verify_payment [post]
func ApiVerifyPayment(svc *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.VerifyAndActivate(c.Request.Context(), callerOf(c), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Cancel subscription
// @Description  Stops auto renewal; access continues until the end date.
// @Tags         Subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/cancel [post]
func ApiCancelSubscription(svc *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Cancel(c.Request.Context(), callerOf(c))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Reactivate subscription
// @Description  Restores auto renewal of a cancelled subscription whose period has not ended.
// @Tags         Subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/reactivate [post]
func ApiReactivateSubscription(svc *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Reactivate(c.Request.Context(), callerOf(c))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Current user
// @Description  The caller's profile with the denormalized subscription snapshot.
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespUser
// @Router       /api/v1/users/me [get]
func ApiMe(users *user.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerOf(c)
		if caller == nil {
			fail(c, log, errUnauthenticated)
			return
		}
		u, err := users.Get(c.Request.Context(), caller.ID)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(u))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *subsvc.Service, log *zap.SugaredLogger) {
	r.GET("/current", ApiCurrentSubscription(svc, log))
	r.GET("/history", ApiSubscriptionHistory(svc, log))
	r.POST("/create_order", ApiCreateOrder(svc, log))
	r.POST("/verify_payment", ApiVerifyPayment(svc, log))
	r.POST("/cancel", ApiCancelSubscription(svc, log))
	r.POST("/reactivate", ApiReactivateSubscription(svc, log))
}

func RegisterUserRoutes(r gin.IRouter, users *user.Service, log *zap.SugaredLogger) {
	r.GET("/me", ApiMe(users, log))
}
