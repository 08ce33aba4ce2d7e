package payment_log

import (
	"context"
	"encoding/json"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save persists a payment log. Failures are logged, never returned: the audit
// trail must not block a payment. Nil input is ignored.
func (s *Service) Save(ctx context.Context, log *models.PaymentLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	if log.TraceID == "" {
		log.TraceID = logctx.TraceID(ctx)
	}
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Save(log).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to save payment log: %v", err)
	}
}

// Finish records the outcome of a logged attempt.
func (s *Service) Finish(ctx context.Context, log *models.PaymentLog, result any, err error) {
	if log == nil {
		return
	}
	log.Status = models.PaymentLogStatusHandled
	payload := map[string]any{}
	if result != nil {
		payload["result"] = result
	}
	if err != nil {
		log.Status = models.PaymentLogStatusHandleFailed
		payload["error"] = err.Error()
	}
	if b, mErr := json.Marshal(payload); mErr == nil {
		r := datatypes.JSON(b)
		log.Result = &r
	}
	s.Save(ctx, log)
}

// ListByPayment returns the log entries recorded for a gateway payment id.
func (s *Service) ListByPayment(ctx context.Context, paymentID string) ([]*models.PaymentLog, error) {
	var rows []*models.PaymentLog
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("created_at asc").Order("id asc").Find(&rows).Error
	return rows, err
}

var Module = fx.Options(
	fx.Provide(New),
)
