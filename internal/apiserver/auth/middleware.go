package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"user-admin/pkg/logging"
)

// 守卫拒绝时返回给客户端的消息
const (
	MsgLoginRequired    = "请先登录"
	MsgTokenInvalid     = "token 失效，请重新登录"
	MsgPermissionDenied = "您没有访问该接口的权限"
)

// 认证失败原因（用于指标标签）
const (
	ReasonMissingToken   = "missing_token"
	ReasonMalformedToken = "malformed_header"
	ReasonInvalidToken   = "invalid_token"
	ReasonRevoked        = "revoked"
	ReasonForbidden      = "forbidden"
)

// Policy 单个路由的访问策略
//
// Public 为 true 时跳过认证；Permissions 非空时要求持有其中任意一个权限码。
type Policy struct {
	Public      bool
	Permissions []string
}

// RevocationChecker 查询用户的访问令牌是否已被吊销
type RevocationChecker interface {
	IsRevoked(ctx context.Context, userID string) (bool, error)
}

// Guard 认证与鉴权守卫
type Guard struct {
	tokens    *TokenService
	revoked   RevocationChecker
	logger    *logging.Logger
	onFailure func(reason string)
}

// NewGuard 创建守卫，revoked 可为 nil
func NewGuard(tokens *TokenService, revoked RevocationChecker, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Guard{tokens: tokens, revoked: revoked, logger: logger.Named("auth")}
}

// OnFailure 注册拒绝回调（指标计数）
func (g *Guard) OnFailure(fn func(reason string)) {
	g.onFailure = fn
}

// Protect 按策略依次套上认证与鉴权
func (g *Guard) Protect(policy Policy, next http.Handler) http.Handler {
	return g.Authenticate(policy, g.Authorize(policy, next))
}

// Authenticate 认证守卫：公开路由直接放行，否则校验 Bearer 访问令牌并注入 Principal
func (g *Guard) Authenticate(policy Policy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if policy.Public {
			next.ServeHTTP(w, r)
			return
		}

		token, err := BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			reason := ReasonMalformedToken
			if errors.Is(err, errMissingHeader) {
				reason = ReasonMissingToken
			}
			g.reject(w, http.StatusUnauthorized, MsgLoginRequired, reason)
			return
		}

		principal, err := g.tokens.Verify(token)
		if err != nil {
			g.logger.WithContext(r.Context()).Debug("token rejected", "error", err)
			g.reject(w, http.StatusUnauthorized, MsgTokenInvalid, ReasonInvalidToken)
			return
		}

		if g.revoked != nil {
			revoked, err := g.revoked.IsRevoked(r.Context(), principal.UserID)
			if err != nil {
				g.logger.WithContext(r.Context()).WithError(err).Error("revocation lookup failed",
					"user_id", principal.UserID)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if revoked {
				g.reject(w, http.StatusUnauthorized, MsgTokenInvalid, ReasonRevoked)
				return
			}
		}

		ctx := WithPrincipal(r.Context(), principal)
		ctx = logging.WithUserID(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize 鉴权守卫：无 Principal 或路由未声明权限时放行
func (g *Guard) Authorize(policy Policy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Authorized(PrincipalFrom(r.Context()), policy.Permissions) {
			g.reject(w, http.StatusForbidden, MsgPermissionDenied, ReasonForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authorized 判断 Principal 是否满足 required（any-of，精确匹配）
func Authorized(p *Principal, required []string) bool {
	if p == nil || len(required) == 0 {
		return true
	}
	return p.HasAny(required)
}

var (
	errMissingHeader   = errors.New("missing authorization header")
	errMalformedHeader = errors.New("malformed authorization header")
)

// BearerToken 从 Authorization 头提取令牌
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errMalformedHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errMalformedHeader
	}
	return token, nil
}

func (g *Guard) reject(w http.ResponseWriter, status int, message, reason string) {
	if g.onFailure != nil {
		g.onFailure(reason)
	}
	writeError(w, status, message)
}

// writeError 统一错误响应：{code, message, data: null}
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": message,
		"data":    nil,
	})
}

// Route 声明式路由：方法、路径、访问策略与处理函数
type Route struct {
	Method  string
	Path    string
	Policy  Policy
	Handler http.HandlerFunc
}

// Pattern ServeMux 路由模式，如 "GET /api/v1/user/info"
func (r Route) Pattern() string {
	return r.Method + " " + r.Path
}
