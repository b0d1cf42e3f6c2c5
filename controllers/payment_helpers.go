package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/kingjethro999/the-ecommerce-api/services"
	"go.uber.org/zap"
)

// respondError logs the service error and writes its message as JSON.
// The cause stays in the logs.
func (pc *PaymentController) respondError(ctx *gin.Context, svcErr *services.ServiceError) {
	fields := []zap.Field{
		zap.Int("status", svcErr.StatusCode),
		zap.String("path", ctx.FullPath()),
		zap.Bool("retryable", svcErr.Retryable()),
		zap.Error(svcErr),
	}
	if svcErr.StatusCode >= 500 {
		pc.logger.Error(svcErr.Message, fields...)
	} else {
		pc.logger.Warn(svcErr.Message, fields...)
	}
	ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
}
