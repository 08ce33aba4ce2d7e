package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/jwtauth"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/response"
	"github.com/fatflowers/streambox/pkg/types"
)

// UserProvisioner creates the local user record on first sight.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, caller *auth.Caller) (*models.User, error)
}

// AuthMiddleware validates the bearer token, provisions the user and puts
// the caller on the request context.
func AuthMiddleware(tokens *jwtauth.Service, users UserProvisioner, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			log.Infow("bearer token rejected", "error", err)
			abort(c, apperr.Wrap(apperr.KindUnauthorized, err, "invalid bearer token"))
			return
		}

		caller := &auth.Caller{
			ID:       claims.Subject,
			Role:     types.UserRole(claims.Role),
			Email:    claims.Email,
			Username: claims.Username,
		}
		if caller.Role != types.UserRoleAdmin {
			caller.Role = types.UserRoleUser
		}
		if users != nil {
			if _, err := users.EnsureUser(c.Request.Context(), caller); err != nil {
				log.Errorw("failed to provision user", "user_id", caller.ID, "error", err)
				abort(c, err)
				return
			}
		}

		ctx := auth.WithCaller(c.Request.Context(), caller)
		//nolint:staticcheck // string keys are shared with gin.Context
		ctx = context.WithValue(ctx, logctx.UserIDKey, caller.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(logctx.UserIDKey, caller.ID)
		setLogger(c, log.With("user_id", caller.ID))

		c.Next()
	}
}

// RequirePermission rejects callers the policy does not allow to perform
// action. It must run after AuthMiddleware.
func RequirePermission(action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := auth.CallerFrom(c.Request.Context())
		if err := auth.Authorize(caller, action); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusOK, response.FromError(err))
}
