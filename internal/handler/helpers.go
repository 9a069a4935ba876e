package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/routecache/internal/middleware"
	appErr "github.com/xxxsen/routecache/internal/pkg/errors"
)

const msgInvalidRequest = "invalid request"

// bindJSON decodes the request body into dst and answers the request itself
// when that fails.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.String(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
		return false
	}
	logger(c).Debug("bad request body", zap.Error(err))
	c.String(http.StatusBadRequest, msgInvalidRequest)
	return false
}

// handleError logs err and answers with a plain-text body. Storage failures
// all map to 500 with the endpoint's fixed message.
func handleError(c *gin.Context, err error, message string) {
	if appErr.IsInvalid(err) {
		c.String(http.StatusBadRequest, msgInvalidRequest)
		return
	}
	logger(c).Error("request failed", zap.Error(err))
	c.String(http.StatusInternalServerError, message)
}

func logger(c *gin.Context) *zap.Logger {
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	return logutil.GetLogger(c.Request.Context()).With(
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
}
