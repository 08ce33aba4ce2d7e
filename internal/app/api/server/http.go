package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/docs"
	"github.com/fatflowers/streambox/internal/app/api/handlers"
	mw "github.com/fatflowers/streambox/internal/app/api/middleware"
	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/internal/app/service/expiry"
	"github.com/fatflowers/streambox/internal/app/service/payment_log"
	"github.com/fatflowers/streambox/internal/app/service/statistics"
	subsvc "github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/internal/app/service/user"
	"github.com/fatflowers/streambox/internal/app/service/webhook"
	cfgpkg "github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/jwtauth"
	metrics "github.com/fatflowers/streambox/pkg/metrics"
)

// Deps is everything the router needs.
type Deps struct {
	fx.In

	Log          *zap.SugaredLogger
	Config       *cfgpkg.Config
	DB           *gorm.DB
	Tokens       *jwtauth.Service
	Catalog      *catalog.Service
	Subscription *subsvc.Service
	Statistics   *statistics.Service
	Users        *user.Service
	PaymentLog   *payment_log.Service
	Expiry       *expiry.Scheduler
	Webhook      *webhook.NotificationHandler
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request logger & access log are attached per group in RegisterRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerMetrics(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config) {
	if cfg == nil || cfg.MetricsAddr == "" {
		return
	}
	p := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
	p.SetListenAddress(cfg.MetricsAddr)
	p.Use(r)
	log.Infow("metrics started", "addr", cfg.MetricsAddr)
}

// RegisterRoutes mounts every API group on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	log := d.Log

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, d.DB)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterPlanRoutes(apiV1, d.Catalog, log)
	handlers.RegisterWebhookRoutes(apiV1.Group("/payment/webhook"), d.Webhook, log)

	authed := apiV1.Group("")
	authed.Use(mw.AuthMiddleware(d.Tokens, d.Users, log))
	handlers.RegisterSubscriptionRoutes(authed.Group("/subscriptions"), d.Subscription, log)
	handlers.RegisterUserRoutes(authed.Group("/users"), d.Users, log)

	admin := authed.Group("/admin")
	admin.Use(mw.RequirePermission(auth.ActionSubscriptionsAdmin))
	handlers.RegisterAdminRoutes(admin, &handlers.AdminDeps{
		Catalog:      d.Catalog,
		Subscription: d.Subscription,
		Statistics:   d.Statistics,
		Users:        d.Users,
		PaymentLog:   d.PaymentLog,
		Expiry:       d.Expiry,
		Log:          log,
	})
}

func runServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("server error", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerMetrics),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(runServer),
)
