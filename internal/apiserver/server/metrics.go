package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 认证指标
	AuthFailuresTotal *prometheus.CounterVec
	LoginsTotal       *prometheus.CounterVec
	CaptchaIssued     *prometheus.CounterVec

	// 邮件指标
	NotifyDroppedTotal prometheus.Counter
	NotifySentTotal    *prometheus.CounterVec

	// 数据库指标
	DBQueryTotal    *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
}

// NewMetrics 创建指标实例，注册到独立的 Registry（含 Go 运行时与进程指标）
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		AuthFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Requests rejected by the authentication or authorization guard",
			},
			[]string{"reason"},
		),
		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		CaptchaIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captcha_issued_total",
				Help:      "One-time codes issued by purpose",
			},
			[]string{"purpose"},
		),
		NotifyDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_dropped_total",
				Help:      "Emails dropped because the dispatch queue was full or closed",
			},
		),
		NotifySentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_sent_total",
				Help:      "Email delivery attempts by result",
			},
			[]string{"result"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_queries_total",
				Help:      "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation", "table"},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routeLabel(r)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel 使用 ServeMux 匹配到的路由模式作为标签，避免高基数
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

// Handler 返回 Prometheus HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AuthFailure 记录守卫拒绝
func (m *Metrics) AuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// LoginAttempt 记录登录结果
func (m *Metrics) LoginAttempt(result string) {
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// CodeIssued 记录验证码签发
func (m *Metrics) CodeIssued(purpose string) {
	m.CaptchaIssued.WithLabelValues(purpose).Inc()
}

// EmailDropped 记录被丢弃的邮件
func (m *Metrics) EmailDropped() {
	m.NotifyDroppedTotal.Inc()
}

// EmailSent 记录邮件发送结果
func (m *Metrics) EmailSent(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.NotifySentTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery 记录数据库查询指标
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
