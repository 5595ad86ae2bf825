// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string    `json:"level"`
	Format    string    `json:"format"` // json or text
	Output    string    `json:"output"` // stdout, stderr, or file path
	Component string    `json:"component"`
	Writer    io.Writer `json:"-"` // 非空时优先于 Output（测试用）
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)

	output := cfg.Writer
	if output == nil {
		switch cfg.Output {
		case "stdout", "":
			output = os.Stdout
		case "stderr":
			output = os.Stderr
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				output = os.Stdout
			} else {
				output = f
			}
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	base := slog.New(handler)
	if cfg.Component != "" {
		base = base.With(slog.String("component", cfg.Component))
	}
	return &Logger{Logger: base, component: cfg.Component}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// Discard 丢弃所有输出的日志器
func Discard() *Logger {
	return New(Config{Writer: io.Discard, Level: "error"})
}

// Named 派生子组件日志器
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("component", component)),
		component: component,
	}
}

// WithContext 从上下文提取请求信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithRequestID 将请求 ID 注入 context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithUserID 将用户 ID 注入 context
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// HTTPRequestLog HTTP 请求日志
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration, clientIP string) {
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.String("client_ip", clientIP),
	}
	switch {
	case status >= 500:
		l.Logger.Error("HTTP request", attrs...)
	case status >= 400:
		l.Logger.Warn("HTTP request", attrs...)
	default:
		l.Logger.Info("HTTP request", attrs...)
	}
}

// DBQueryLog 数据库查询日志
func (l *Logger) DBQueryLog(operation, table string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("table", table),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("DB query failed", attrs...)
	} else {
		l.Logger.Debug("DB query", attrs...)
	}
}

// AuthLog 认证事件日志（登录、刷新、拒绝）
func (l *Logger) AuthLog(event, username string, ok bool, extra ...any) {
	attrs := []any{
		slog.String("event", event),
		slog.String("username", username),
		slog.Bool("ok", ok),
	}
	attrs = append(attrs, extra...)
	if ok {
		l.Logger.Info("Auth event", attrs...)
	} else {
		l.Logger.Warn("Auth event", attrs...)
	}
}
