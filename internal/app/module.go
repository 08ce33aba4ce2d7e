package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/streambox/internal/app/api/server"
	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/internal/app/service/events"
	"github.com/fatflowers/streambox/internal/app/service/expiry"
	"github.com/fatflowers/streambox/internal/app/service/gateway"
	"github.com/fatflowers/streambox/internal/app/service/payment_log"
	"github.com/fatflowers/streambox/internal/app/service/pricing"
	"github.com/fatflowers/streambox/internal/app/service/statistics"
	"github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/internal/app/service/user"
	"github.com/fatflowers/streambox/internal/app/service/webhook"
	"github.com/fatflowers/streambox/internal/platform/db"
	"github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/jwtauth"
	"github.com/fatflowers/streambox/pkg/logger"
	"github.com/fatflowers/streambox/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Infra is everything below the services; cmd/seed reuses it.
var Infra = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	metrics.Module,
	jwtauth.Module,
)

var Module = fx.Options(
	Infra,
	events.Module,
	gateway.Module,
	pricing.Module,
	catalog.Module,
	user.Module,
	payment_log.Module,
	subscription.Module,
	statistics.Module,
	expiry.Module,
	webhook.Module,
	server.Module,
)
