package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/types"
)

func TestAuthorize(t *testing.T) {
	user := &Caller{ID: "u1", Role: types.UserRoleUser}
	admin := &Caller{ID: "a1", Role: types.UserRoleAdmin}

	cases := []struct {
		name   string
		caller *Caller
		action Action
		want   error
	}{
		{"anonymous", nil, ActionSubscriptionsOwn, apperr.ErrUnauthorized},
		{"empty id", &Caller{Role: types.UserRoleAdmin}, ActionPlansManage, apperr.ErrUnauthorized},
		{"user own subscriptions", user, ActionSubscriptionsOwn, nil},
		{"user manages plans", user, ActionPlansManage, apperr.ErrForbidden},
		{"user reads users", user, ActionUsersRead, apperr.ErrForbidden},
		{"user admin subscriptions", user, ActionSubscriptionsAdmin, apperr.ErrForbidden},
		{"admin manages plans", admin, ActionPlansManage, nil},
		{"admin own subscriptions", admin, ActionSubscriptionsOwn, nil},
		{"unknown action", admin, Action("videos:delete"), apperr.ErrForbidden},
		{"unknown role", &Caller{ID: "x", Role: "moderator"}, ActionSubscriptionsOwn, apperr.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.caller, tc.action)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestCallerContext(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	require.False(t, ok)

	c := &Caller{ID: "u1"}
	got, ok := CallerFrom(WithCaller(context.Background(), c))
	require.True(t, ok)
	require.Same(t, c, got)
	require.False(t, got.IsAdmin())
}
