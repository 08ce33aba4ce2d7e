package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/response"
)

func callerOf(c *gin.Context) *auth.Caller {
	caller, _ := auth.CallerFrom(c.Request.Context())
	return caller
}

// fail writes the error envelope. Internal errors are logged here since their
// message is not returned to the client.
func fail(c *gin.Context, log *zap.SugaredLogger, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logctx.FromGin(c, log).Errorw("request_failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(http.StatusOK, response.FromError(err))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}

var errUnauthenticated = apperr.New(apperr.KindUnauthorized, "authentication required")
