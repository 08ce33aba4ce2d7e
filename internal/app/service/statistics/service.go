package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/types"
)

type StatisticType string

const (
	StatisticTypeStatusCount               StatisticType = "status_count"
	StatisticTypeLiveByPlan                StatisticType = "live_by_plan"
	StatisticTypeTotalActiveCount          StatisticType = "total_active_count"
	StatisticTypeTotalRevenue              StatisticType = "total_revenue"
	StatisticTypeDailyRevenue              StatisticType = "daily_revenue"
	StatisticTypeDailyNewSubscriptionCount StatisticType = "daily_new_subscription_count"
	// Counted from the daily snapshot table.
	StatisticTypeDailyActiveCount StatisticType = "daily_active_count"
)

var allTypes = []StatisticType{
	StatisticTypeStatusCount,
	StatisticTypeLiveByPlan,
	StatisticTypeTotalActiveCount,
	StatisticTypeTotalRevenue,
	StatisticTypeDailyRevenue,
	StatisticTypeDailyNewSubscriptionCount,
	StatisticTypeDailyActiveCount,
}

// Filter fields and the statistic types each one applies to. A data item
// requested together with a filter it does not support comes back empty.
var validFilters = map[string][]StatisticType{
	"plan_id":        allTypes,
	"currency":       allTypes,
	"billing_cycle":  lo.Without(allTypes, StatisticTypeDailyActiveCount),
	"payment_method": lo.Without(allTypes, StatisticTypeDailyActiveCount),
	"created_at":     lo.Without(allTypes, StatisticTypeDailyActiveCount),
}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

// filtersFor returns a clause over the filters of the request, qualified by
// table when given.
func (r *Request) filtersFor(table string) clause.Expression {
	if len(r.Filters) == 0 {
		return types.FiltersAnd(nil)
	}
	out := make(types.FiltersAnd, 0, len(r.Filters))
	for _, f := range r.Filters {
		cp := *f
		if table != "" {
			cp.Field = table + "." + f.Field
		}
		out = append(out, &cp)
	}
	return out
}

func (r *Request) supports(t StatisticType) bool {
	for _, f := range r.Filters {
		if !lo.Contains(validFilters[f.Field], t) {
			return false
		}
	}
	return true
}

type ResponseDataItem struct {
	Date   string          `json:"date,omitempty"`
	Label  string          `json:"label,omitempty"`
	Value  int64           `json:"value"`
	Amount decimal.Decimal `json:"amount" swaggertype:"string"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// dateExpr formats a timestamp column as YYYY-MM-DD in the connected dialect.
func (s *Service) dateExpr(column string) string {
	if s.db.Dialector.Name() == "sqlite" {
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
	}
	return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
}

func (s *Service) subscriptions(ctx context.Context, r *Request) *gorm.DB {
	return s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Where(clause.Where{Exprs: []clause.Expression{r.filtersFor("")}})
}

func (s *Service) getStatusCount(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.subscriptions(ctx, r).
		Select("status as label, count(*) as value").
		Group("status").
		Order("label").
		Find(&results).Error
	return results, err
}

func (s *Service) getLiveByPlan(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	sub := (models.Subscription{}).TableName()
	plan := (models.Plan{}).TableName()
	err := s.db.WithContext(ctx).Table(sub).
		Select(plan+".name as label, count(*) as value").
		Joins("JOIN "+plan+" ON "+plan+".id = "+sub+".plan_id").
		Where(clause.Where{Exprs: []clause.Expression{r.filtersFor(sub)}}).
		Where(sub+".status IN ?", types.LiveSubscriptionStatuses).
		Where(sub+".end_date > ?", s.now()).
		Group(plan + ".name").
		Order("value desc").Order("label").
		Find(&results).Error
	return results, err
}

func (s *Service) getTotalActiveCount(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var count int64
	err := s.subscriptions(ctx, r).
		Where("status = ?", types.SubscriptionStatusActive).
		Where("end_date > ?", s.now()).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	return []ResponseDataItem{{Value: count}}, nil
}

// Revenue is the sum of amounts charged at activation, per currency.
func (s *Service) getTotalRevenue(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.subscriptions(ctx, r).
		Select("currency as label, count(*) as value, sum(amount) as amount").
		Group("currency").
		Order("label").
		Find(&results).Error
	return results, err
}

func (s *Service) getDailyRevenue(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	day := s.dateExpr("created_at")
	err := s.subscriptions(ctx, r).
		Select(day + " as date, currency as label, count(*) as value, sum(amount) as amount").
		Group(day).Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Order("label").
		Find(&results).Error
	return results, err
}

func (s *Service) getDailyNewSubscriptionCount(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	day := s.dateExpr("created_at")
	err := s.subscriptions(ctx, r).
		Select(day + " as date, count(DISTINCT user_id) as value").
		Group(day).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&results).Error
	return results, err
}

func (s *Service) getDailyActiveCount(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Table((models.SubscriptionDailySnapshot{}).TableName()).
		Select("snapshot_date as date, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{r.filtersFor("")}}).
		Group("snapshot_date").
		Order("snapshot_date").
		Find(&results).Error
	return results, err
}

func (s *Service) getStatistic(ctx context.Context, r *Request, item *DataItem) ([]ResponseDataItem, error) {
	switch item.ID {
	case StatisticTypeStatusCount:
		return s.getStatusCount(ctx, r)
	case StatisticTypeLiveByPlan:
		return s.getLiveByPlan(ctx, r)
	case StatisticTypeTotalActiveCount:
		return s.getTotalActiveCount(ctx, r)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, r)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, r)
	case StatisticTypeDailyNewSubscriptionCount:
		return s.getDailyNewSubscriptionCount(ctx, r)
	case StatisticTypeDailyActiveCount:
		return s.getDailyActiveCount(ctx, r)
	default:
		return nil, apperr.Validation("invalid data item id: %s", item.ID)
	}
}

// Get computes the requested data items concurrently.
func (s *Service) Get(ctx context.Context, caller *auth.Caller, r *Request) (*Response, error) {
	if err := auth.Authorize(caller, auth.ActionSubscriptionsAdmin); err != nil {
		return nil, err
	}
	if r == nil || len(r.DataItems) == 0 {
		return nil, apperr.Validation("data_items is required")
	}
	if err := types.ValidateFilters(r.Filters, lo.Keys(validFilters)); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid filters")
	}
	for _, item := range r.DataItems {
		if item == nil || !lo.Contains(allTypes, item.ID) {
			return nil, apperr.Validation("invalid data item")
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	results := make(map[StatisticType][]ResponseDataItem, len(r.DataItems))
	for _, item := range r.DataItems {
		wg.Add(1)
		go func(di *DataItem) {
			defer wg.Done()
			var res []ResponseDataItem
			var err error
			if r.supports(di.ID) {
				res, err = s.getStatistic(ctx, r, di)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("statistic %s: %w", di.ID, err)
				}
				return
			}
			results[di.ID] = res
		}(item)
	}
	wg.Wait()

	if firstErr != nil {
		logctx.FromCtx(ctx, s.log).Errorw("statistic_failed", "error", firstErr)
		return nil, firstErr
	}
	return &Response{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
