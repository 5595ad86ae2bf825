// Package server 路由装配与 HTTP 基础设施
//
// 文件组织：
//   - common.go: Handler 定义、健康检查、响应工具函数
//   - handler.go: 路由表与中间件链
//   - middleware.go: 请求 ID、访问日志、CORS
//   - metrics.go: Prometheus 指标
//   - demo.go: 守卫演示接口 /aaa、/bbb
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"user-admin/internal/apiserver/auth"
	"user-admin/internal/apiserver/user"
	"user-admin/pkg/logging"
)

// HealthCheck 依赖健康检查（数据库、Redis）
type HealthCheck func(ctx context.Context) error

// Deps Handler 依赖
type Deps struct {
	Guard   *auth.Guard
	Users   *user.Handler
	Metrics *Metrics
	Logger  *logging.Logger
	Checks  map[string]HealthCheck
}

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 按路由表挂载业务处理器并套上守卫
//   - 暴露健康检查与指标端点
type Handler struct {
	guard   *auth.Guard
	users   *user.Handler
	metrics *Metrics
	logger  *logging.Logger
	checks  map[string]HealthCheck
}

// NewHandler 创建 Handler 实例
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handler{
		guard:   d.Guard,
		users:   d.Users,
		metrics: d.Metrics,
		logger:  logger.Named("http"),
		checks:  d.Checks,
	}
	if h.metrics != nil {
		h.guard.OnFailure(h.metrics.AuthFailure)
	}
	return h
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// healthTimeout 单项依赖检查超时
const healthTimeout = 2 * time.Second

// Health 健康检查接口
//
// 路由: GET /health
//
// 所有依赖正常返回 200 {"status": "ok"}，否则 503 并列出失败项。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Warn("health check failed", "dependency", name)
			failed[name] = "unavailable"
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeOK 成功响应，与 user 包的信封格式一致
func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}

// writeError 错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
		"data":    nil,
	})
}
