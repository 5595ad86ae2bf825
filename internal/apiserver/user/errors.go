package user

import (
	"errors"
	"strings"
)

// 领域错误，消息直接返回给客户端（4xx）
var (
	ErrCodeExpired        = errors.New("验证码已失效")
	ErrCodeMismatch       = errors.New("验证码不正确")
	ErrUserExists         = errors.New("用户已存在")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrInvalidCredentials = errors.New("密码不正确")
	ErrUserFrozen         = errors.New("用户已被冻结")
	ErrUnauthenticated    = errors.New("token 已失效，请重新登录")
	ErrInvalidFile        = errors.New("只支持 jpeg/png/gif/webp 格式的图片")
	ErrFileTooLarge       = errors.New("图片不能超过 3MB")
	ErrUploadDisabled     = errors.New("头像上传未启用")
)

// ErrOldPasswordMismatch 修改密码时旧密码不符，errors.Is 归类为 ErrInvalidCredentials
var ErrOldPasswordMismatch error = &domainError{kind: ErrInvalidCredentials, msg: "旧密码不正确"}

// domainError 自定义消息、归属于某个领域错误
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.kind }

// ValidationError 请求参数校验失败
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ",")
}

// IsDomainError 是否为应返回 400 的业务错误
func IsDomainError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, target := range []error{
		ErrCodeExpired, ErrCodeMismatch, ErrUserExists, ErrUserNotFound,
		ErrInvalidCredentials, ErrUserFrozen, ErrInvalidFile, ErrFileTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
