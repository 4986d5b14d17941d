package util

import "errors"

// 错误分类：controller 层用 errors.Is 映射到 HTTP 状态码。
// 副作用(镜像记录、审计流水、邮件)的失败只记日志，不进这套分类。
var (
	ErrValidation = errors.New("missing or malformed required fields")
	ErrNotFound   = errors.New("resource not found")
	ErrStorage    = errors.New("storage operation failed")
	ErrTimeout    = errors.New("operation exceeded its time budget")

	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrViolationResolved  = errors.New("violation already resolved")
	ErrInvalidAction      = errors.New("invalid teacher action")
)
