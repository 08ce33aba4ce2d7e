package user

import (
	"context"
	"errors"
	"fmt"

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

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// EnsureUser provisions the local user record for an authenticated caller on
// first sight, and keeps profile fields in sync with the credential.
func (s *Service) EnsureUser(ctx context.Context, caller *auth.Caller) (*models.User, error) {
	if caller == nil || caller.ID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "authentication required")
	}
	u := &models.User{
		ID:       caller.ID,
		Username: caller.Username,
		Email:    caller.Email,
		Role:     caller.Role,
		Subscription: models.UserSubscription{
			Status:      types.UserSubscriptionStatusFree,
			AutoRenewal: true,
		},
	}
	if u.Role == "" {
		u.Role = types.UserRoleUser
	}
	// Only profile columns are refreshed; the subscription snapshot belongs to
	// the lifecycle manager.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "role", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	return s.Get(ctx, caller.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "user %s not found", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// Snapshot returns the denormalized subscription fields of a user.
func (s *Service) Snapshot(ctx context.Context, id string) (*models.UserSubscription, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &u.Subscription, nil
}

type ListUsersRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type ListUsersResponse struct {
	Items []*models.User `json:"items"`
	Total int64          `json:"total"`
}

var userFilterFields = []string{"id", "email", "role", "subscription_status", "subscription_current_plan_id", "created_at"}

func (s *Service) List(ctx context.Context, caller *auth.Caller, req *ListUsersRequest) (*ListUsersResponse, error) {
	if err := auth.Authorize(caller, auth.ActionUsersRead); err != nil {
		return nil, err
	}
	if req == nil {
		req = &ListUsersRequest{}
	}
	if err := types.ValidateFilters(req.Filters, userFilterFields); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid filters")
	}
	if req.Size <= 0 || req.Size > 200 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.User{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	tx = tx.Session(&gorm.Session{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	var rows []*models.User
	if err := tx.Order("created_at desc").Limit(req.Size).Offset(req.From).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Debugw("users_listed", "total", total)
	return &ListUsersResponse{Items: rows, Total: total}, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
