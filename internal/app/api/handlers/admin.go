package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/internal/app/service/expiry"
	"github.com/fatflowers/streambox/internal/app/service/payment_log"
	"github.com/fatflowers/streambox/internal/app/service/statistics"
	subsvc "github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/internal/app/service/user"
	"github.com/fatflowers/streambox/pkg/response"
	"github.com/fatflowers/streambox/pkg/types"
)

// AdminDeps groups what the admin routes need.
type AdminDeps struct {
	Catalog      *catalog.Service
	Subscription *subsvc.Service
	Statistics   *statistics.Service
	Users        *user.Service
	PaymentLog   *payment_log.Service
	Expiry       *expiry.Scheduler
	Log          *zap.SugaredLogger
}

// @Summary      List all plans (Admin)
// @Description  Includes inactive plans.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/admin/plans [get]
func ApiAdminListPlans(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := d.Catalog.ListAll(c.Request.Context(), callerOf(c))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plans))
	}
}

// @Summary      Create plan (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body catalog.PlanInput true "Plan"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/admin/plans [post]
func ApiCreatePlan(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req catalog.PlanInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		plan, err := d.Catalog.Create(c.Request.Context(), callerOf(c), &req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

// @Summary      Update plan (Admin)
// @Description  Only the fields present in the body change.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path  string             true  "Plan ID"
// @Param        request body  catalog.PlanPatch  true  "Fields to change"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/admin/plans/{id} [put]
func ApiUpdatePlan(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req catalog.PlanPatch
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		plan, err := d.Catalog.Update(c.Request.Context(), callerOf(c), c.Param("id"), &req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

// @Summary      Delete plan (Admin)
// @Description  Fails with a conflict while a live subscription references the plan.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/plans/{id} [delete]
func ApiDeletePlan(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Catalog.Delete(c.Request.Context(), callerOf(c), c.Param("id")); err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      List subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body subscription.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespScanSubscriptions
// @Router       /api/v1/admin/list_subscriptions [post]
func ApiListSubscriptions(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := d.Subscription.Scan(c.Request.Context(), callerOf(c), &req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get subscription (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id} [get]
func ApiGetSubscription(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := d.Subscription.Get(c.Request.Context(), callerOf(c), c.Param("id"))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

type ExpireSubscriptionsResponse struct {
	Expired int `json:"expired"`
}

// @Summary      Expire subscriptions (Admin)
// @Description  Runs the expiry sweep now.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespExpire
// @Router       /api/v1/admin/expire_subscriptions [post]
func ApiExpireSubscriptions(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := d.Expiry.RunOnce(c.Request.Context())
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ExpireSubscriptionsResponse{Expired: n}))
	}
}

// @Summary      Get subscription statistics (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body statistics.Request true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/get_subscription_statistic [post]
func ApiGetSubscriptionStatistic(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := d.Statistics.Get(c.Request.Context(), callerOf(c), &req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List users (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        from    query  int     false  "Offset"
// @Param        size    query  int     false  "Page size"
// @Param        status  query  string  false  "Subscription status snapshot"
// @Success      200  {object}  handlers.RespUsers
// @Router       /api/v1/admin/users [get]
func ApiListUsers(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &user.ListUsersRequest{}
		var err error
		if v := c.Query("from"); v != "" {
			if req.From, err = strconv.Atoi(v); err != nil || req.From < 0 {
				badRequest(c, errors.New("invalid from"))
				return
			}
		}
		if v := c.Query("size"); v != "" {
			if req.Size, err = strconv.Atoi(v); err != nil || req.Size <= 0 {
				badRequest(c, errors.New("invalid size"))
				return
			}
		}
		if v := c.Query("status"); v != "" {
			req.Filters = append(req.Filters, &types.CommonFilter{
				Field: "subscription_status", Operator: types.CommonFilterOperatorEq, Values: []any{v},
			})
		}
		res, err := d.Users.List(c.Request.Context(), callerOf(c), req)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Payment logs (Admin)
// @Description  Verification attempts and webhooks recorded for a gateway payment id.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        payment_id  query  string  true  "Gateway payment id"
// @Success      200  {object}  handlers.RespPaymentLogs
// @Router       /api/v1/admin/payment_logs [get]
func ApiListPaymentLogs(d *AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID := c.Query("payment_id")
		if paymentID == "" {
			badRequest(c, errors.New("missing payment_id"))
			return
		}
		logs, err := d.PaymentLog.ListByPayment(c.Request.Context(), paymentID)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(logs))
	}
}

func RegisterAdminRoutes(r gin.IRouter, d *AdminDeps) {
	r.GET("/plans", ApiAdminListPlans(d))
	r.POST("/plans", ApiCreatePlan(d))
	r.PUT("/plans/:id", ApiUpdatePlan(d))
	r.DELETE("/plans/:id", ApiDeletePlan(d))
	r.POST("/list_subscriptions", ApiListSubscriptions(d))
	r.GET("/subscriptions/:id", ApiGetSubscription(d))
	r.POST("/expire_subscriptions", ApiExpireSubscriptions(d))
	r.POST("/get_subscription_statistic", ApiGetSubscriptionStatistic(d))
	r.GET("/users", ApiListUsers(d))
	r.GET("/payment_logs", ApiListPaymentLogs(d))
}
