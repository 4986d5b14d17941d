package controller

import (
	"errors"

	"quiz_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// handleServiceError 把 service 层的错误分类映射到 HTTP 状态码
func handleServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrValidation), errors.Is(err, util.ErrInvalidAction), errors.Is(err, util.ErrViolationResolved):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrTimeout):
		util.GatewayTimeout(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
