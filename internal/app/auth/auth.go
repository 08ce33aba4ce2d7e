// Package auth holds the authenticated caller and the authorization policy
// shared by middleware and services.
package auth

import (
	"context"
	"slices"

	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/types"
)

type Caller struct {
	ID       string
	Role     types.UserRole
	Email    string
	Username string
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == types.UserRoleAdmin
}

type Action string

const (
	ActionPlansManage        Action = "plans:manage"
	ActionUsersRead          Action = "users:read"
	ActionSubscriptionsAdmin Action = "subscriptions:admin"
	ActionSubscriptionsOwn   Action = "subscriptions:own"
)

var policy = map[Action][]types.UserRole{
	ActionPlansManage:        {types.UserRoleAdmin},
	ActionUsersRead:          {types.UserRoleAdmin},
	ActionSubscriptionsAdmin: {types.UserRoleAdmin},
	ActionSubscriptionsOwn:   {types.UserRoleUser, types.UserRoleAdmin},
}

// Authorize is the single decision point for role checks. Unknown actions
// are denied.
func Authorize(caller *Caller, action Action) error {
	if caller == nil || caller.ID == "" {
		return apperr.New(apperr.KindUnauthorized, "authentication required")
	}
	roles, ok := policy[action]
	if !ok || !slices.Contains(roles, caller.Role) {
		return apperr.Forbidden("caller may not perform %s", action)
	}
	return nil
}

type callerKey struct{}

func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (*Caller, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(callerKey{}).(*Caller)
	return c, ok && c != nil
}
