// File: internal/pkg/metrics/http_metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics HTTP 请求指标
type HTTPMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestsInProgress *prometheus.GaugeVec
}

// HTTPBuckets 针对表单提交接口的延迟 buckets（包含对 Kratos 的多次往返），单位：秒
var HTTPBuckets = []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5, 10}

// NewHTTPMetrics 创建 HTTP 指标，reg 为 nil 时注册到 prometheus.DefaultRegisterer
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(registerer(reg))

	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by service, route template, method, and status code",
			},
			[]string{"service", "route", "method", "status_code"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency histogram by service and route template",
				Buckets:   HTTPBuckets,
			},
			[]string{"service", "route"},
		),

		RequestsInProgress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_progress",
				Help:      "Current number of HTTP requests being processed by service",
			},
			[]string{"service"},
		),
	}
}

// RecordRequest 记录 HTTP 请求指标，route 为路由模板（如 "/auth/validate/:schema"）
func (m *HTTPMetrics) RecordRequest(service, route, method string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	service = normalizeServiceName(service)
	m.RequestsTotal.WithLabelValues(service, route, method, strconv.Itoa(statusCode)).Inc()
	m.RequestDuration.WithLabelValues(service, route).Observe(duration.Seconds())
}

// IncInProgress 增加当前进行中的请求数
func (m *HTTPMetrics) IncInProgress(service string) {
	if m == nil {
		return
	}
	m.RequestsInProgress.WithLabelValues(normalizeServiceName(service)).Inc()
}

// DecInProgress 减少当前进行中的请求数
func (m *HTTPMetrics) DecInProgress(service string) {
	if m == nil {
		return
	}
	m.RequestsInProgress.WithLabelValues(normalizeServiceName(service)).Dec()
}

func registerer(reg prometheus.Registerer) prometheus.Registerer {
	if reg == nil {
		return prometheus.DefaultRegisterer
	}
	return reg
}
