package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/pkg/jwtauth"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/response"
	"github.com/fatflowers/streambox/pkg/types"
)

type stubUsers struct {
	seen []*auth.Caller
	err  error
}

func (s *stubUsers) EnsureUser(_ context.Context, c *auth.Caller) (*models.User, error) {
	s.seen = append(s.seen, c)
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: c.ID}, nil
}

type envelope struct {
	Code response.APIResponseCode `json:"code"`
	Data json.RawMessage          `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newRouter(tokens *jwtauth.Service, users UserProvisioner, log *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log), AccessLogMiddleware(log))
	g := r.Group("/", AuthMiddleware(tokens, users, log))
	g.GET("/me", func(c *gin.Context) {
		caller, _ := auth.CallerFrom(c.Request.Context())
		c.JSON(http.StatusOK, response.OKT(caller))
	})
	g.GET("/admin", RequirePermission(auth.ActionPlansManage), func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT("ok"))
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTraceMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logctx.TraceID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwtauth.New("secret")
	userToken, err := tokens.Issue("u1", "user", "u1@example.com", "u1", time.Hour)
	require.NoError(t, err)
	adminToken, err := tokens.Issue("a1", "admin", "", "", time.Hour)
	require.NoError(t, err)
	oddRole, err := tokens.Issue("u2", "superuser", "", "", time.Hour)
	require.NoError(t, err)
	foreign, err := jwtauth.New("other").Issue("u1", "admin", "", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		token string
		want  response.APIResponseCode
	}{
		{name: "missing token", path: "/me", want: response.APIResponseCodeUnauthorized},
		{name: "garbage token", path: "/me", token: "abc", want: response.APIResponseCodeUnauthorized},
		{name: "foreign signature", path: "/me", token: foreign, want: response.APIResponseCodeUnauthorized},
		{name: "user", path: "/me", token: userToken, want: response.APIResponseCodeOK},
		{name: "user on admin route", path: "/admin", token: userToken, want: response.APIResponseCodeForbidden},
		{name: "unknown role is a user", path: "/admin", token: oddRole, want: response.APIResponseCodeForbidden},
		{name: "admin", path: "/admin", token: adminToken, want: response.APIResponseCodeOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(tokens, &stubUsers{}, zap.NewNop().Sugar())
			w := do(r, tt.path, tt.token)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decode(t, w).Code)
		})
	}
}

func TestAuthMiddleware_ProvisionsCallerAndTagsLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tokens := jwtauth.New("secret")
	token, err := tokens.Issue("u1", "user", "u1@example.com", "neo", time.Hour)
	require.NoError(t, err)
	users := &stubUsers{}

	w := do(newRouter(tokens, users, zap.New(core).Sugar()), "/me", token)
	require.Equal(t, response.APIResponseCodeOK, decode(t, w).Code)

	require.Len(t, users.seen, 1)
	assert.Equal(t, "u1", users.seen[0].ID)
	assert.Equal(t, types.UserRoleUser, users.seen[0].Role)
	assert.Equal(t, "neo", users.seen[0].Username)

	access := logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	assert.Equal(t, "u1", access[0].ContextMap()["user_id"])
	assert.Equal(t, "/me", access[0].ContextMap()["path"])
}

func TestAuthMiddleware_ProvisioningFailure(t *testing.T) {
	tokens := jwtauth.New("secret")
	token, err := tokens.Issue("u1", "user", "", "", time.Hour)
	require.NoError(t, err)

	w := do(newRouter(tokens, &stubUsers{err: errors.New("db down")}, zap.NewNop().Sugar()), "/me", token)
	env := decode(t, w)
	assert.Equal(t, response.APIResponseCodeError, env.Code)
	assert.Equal(t, "null", string(env.Data), "internal errors are not echoed")
}
