package controllers

import (
	"context"

	"checkout-service/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestContext carries the request id into service calls.
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if rid := c.GetString(logger.RequestIDKey); rid != "" {
		ctx = logger.WithContext(ctx, rid)
	}
	return ctx
}

// respondError logs a warning and writes a JSON error response.
func respondError(c *gin.Context, log *zap.Logger, status int, msg string, err error) {
	if err != nil {
		log.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

// abortWithAppError logs err and hands it to errors.ErrorMiddleware, which
// picks the status and response body.
func abortWithAppError(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("Request failed", zap.Error(err))
	_ = c.Error(err)
	c.Abort()
}
