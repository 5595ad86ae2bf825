// Package auth 认证与鉴权：密码哈希、JWT 令牌、请求守卫
package auth

import (
	"context"
	"time"

	"user-admin/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeyPrincipal contextKey = "principal"

// Config 认证配置
type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Principal 令牌携带的身份与权限，登录/刷新时由用户派生，不落库
type Principal struct {
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// NewPrincipal 从已加载角色与权限的用户构造 Principal
func NewPrincipal(u *model.User) *Principal {
	return &Principal{
		UserID:      u.ID,
		Username:    u.Username,
		Roles:       u.RoleNames(),
		Permissions: u.PermissionCodes(),
	}
}

// HasAny 是否持有 required 中的任意一个权限码
func (p *Principal) HasAny(required []string) bool {
	for _, want := range required {
		for _, have := range p.Permissions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// WithPrincipal 将 Principal 注入 context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFrom 从 context 获取 Principal，未认证时返回 nil
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(*Principal)
	return p
}
