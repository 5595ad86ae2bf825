package server

import (
	"net/http"

	"user-admin/internal/apiserver/auth"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 基础设施（公开）:
//   - GET /health  - 服务健康检查
//   - GET /metrics - Prometheus 指标
//
// 守卫演示:
//   - GET /aaa - 公开
//   - GET /bbb - 需要 ccc 权限
//
// 用户 (User):
//   - POST  /api/v1/user/register                - 注册（公开）
//   - GET   /api/v1/user/register-captcha        - 注册验证码（公开）
//   - POST  /api/v1/user/login                   - 登录（公开）
//   - POST  /api/v1/user/refresh-token           - 刷新令牌（公开）
//   - GET   /api/v1/user/info                    - 当前用户信息
//   - PATCH /api/v1/user/update-password         - 修改密码
//   - GET   /api/v1/user/update-password-captcha - 修改密码验证码
//   - PATCH /api/v1/user/update                  - 修改资料
//   - GET   /api/v1/user/update-user-captcha     - 修改资料验证码
//   - GET   /api/v1/user/list                    - 用户列表（user:list）
//   - GET   /api/v1/user/freeze                  - 冻结用户（user:freeze）
//   - POST  /api/v1/user/upload                  - 上传头像
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}

	routes := h.demoRoutes()
	if h.users != nil {
		routes = append(routes, h.users.Routes()...)
	}
	h.mount(mux, routes)

	var handler http.Handler = mux
	if h.metrics != nil {
		handler = h.metrics.MetricsMiddleware(handler)
	}
	handler = requestLogMiddleware(h.logger, handler)
	handler = corsMiddleware(handler)
	return requestIDMiddleware(handler)
}

// mount 按路由声明的策略套上认证、鉴权守卫
func (h *Handler) mount(mux *http.ServeMux, routes []auth.Route) {
	for _, rt := range routes {
		mux.Handle(rt.Pattern(), h.guard.Protect(rt.Policy, rt.Handler))
	}
}
