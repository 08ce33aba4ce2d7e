package subscription

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/internal/app/service/events"
	"github.com/fatflowers/streambox/internal/app/service/gateway"
	"github.com/fatflowers/streambox/internal/app/service/payment_log"
	"github.com/fatflowers/streambox/internal/app/service/pricing"
	"github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/metrics"
)

// Service is the subscription lifecycle manager. Every write to a
// subscription and to the user's subscription snapshot goes through it.
type Service struct {
	cfg        *config.Config
	db         *gorm.DB
	log        *zap.SugaredLogger
	catalog    *catalog.Service
	pricing    *pricing.Calculator
	gateways   *gateway.Registry
	paymentLog *payment_log.Service
	publisher  events.Publisher
	metrics    *metrics.Business
	now        func() time.Time
}

func NewService(
	cfg *config.Config,
	db *gorm.DB,
	log *zap.SugaredLogger,
	catalogSvc *catalog.Service,
	calc *pricing.Calculator,
	gateways *gateway.Registry,
	paymentLog *payment_log.Service,
	publisher events.Publisher,
	m *metrics.Business,
) *Service {
	return &Service{
		cfg:        cfg,
		db:         db,
		log:        log,
		catalog:    catalogSvc,
		pricing:    calc,
		gateways:   gateways,
		paymentLog: paymentLog,
		publisher:  publisher,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}
