package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/pkg/response"
)

// @Summary      List plans
// @Description  Active plans ordered by sort order, then price.
// @Tags         Plans
// @Produce      json
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/plans [get]
func ApiListPlans(svc *catalog.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := svc.ListActive(c.Request.Context())
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plans))
	}
}

// @Summary      Get plan
// @Tags         Plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/plans/{id} [get]
func ApiGetPlan(svc *catalog.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

func RegisterPlanRoutes(r gin.IRouter, svc *catalog.Service, log *zap.SugaredLogger) {
	r.GET("/plans", ApiListPlans(svc, log))
	r.GET("/plans/:id", ApiGetPlan(svc, log))
}
