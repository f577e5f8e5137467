package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkflowMetrics 追踪表单提交工作流（sign-in / sign-up）的核心指标。
type WorkflowMetrics struct {
	Runs          *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	InFlight      *prometheus.GaugeVec
	Notifications *prometheus.CounterVec
}

var stepDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2}

// NewWorkflowMetrics 创建 WorkflowMetrics，reg 为 nil 时使用默认 registry。
func NewWorkflowMetrics(namespace string, reg prometheus.Registerer) *WorkflowMetrics {
	factory := promauto.With(registerer(reg))

	return &WorkflowMetrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_workflow_runs_total",
				Help:      "Completed auth form submissions grouped by form and outcome",
			},
			[]string{"form", "outcome"},
		),

		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_workflow_step_duration_seconds",
				Help:      "Latency of each external step of an auth submission",
				Buckets:   stepDurationBuckets,
			},
			[]string{"form", "step", "result"},
		),

		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "auth_workflow_in_flight",
				Help:      "Auth submissions currently being processed",
			},
			[]string{"form"},
		),

		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_workflow_notifications_total",
				Help:      "Toast notifications emitted by auth submissions",
			},
			[]string{"form"},
		),
	}
}

// ObserveRun 记录一次运行的最终结果。
func (m *WorkflowMetrics) ObserveRun(form, outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(form, outcome).Inc()
}

// ObserveStep 记录外部调用步骤耗时。
func (m *WorkflowMetrics) ObserveStep(form, step, result string, duration time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.StepDuration.WithLabelValues(form, step, result).Observe(duration.Seconds())
}

// IncInFlight / DecInFlight 维护进行中的提交数。
func (m *WorkflowMetrics) IncInFlight(form string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(form).Inc()
}

func (m *WorkflowMetrics) DecInFlight(form string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(form).Dec()
}

// IncNotification 记录一次 toast。
func (m *WorkflowMetrics) IncNotification(form string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(form).Inc()
}

// CacheMetrics 查询缓存命中情况。
type CacheMetrics struct {
	Hits      *prometheus.CounterVec
	Misses    *prometheus.CounterVec
	Evictions *prometheus.CounterVec
}

// NewCacheMetrics 创建 CacheMetrics，reg 为 nil 时使用默认 registry。
func NewCacheMetrics(namespace string, reg prometheus.Registerer) *CacheMetrics {
	factory := promauto.With(registerer(reg))

	return &CacheMetrics{
		Hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_hits_total",
				Help:      "Query cache hits by backend and query key",
			},
			[]string{"backend", "query"},
		),
		Misses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_miss_total",
				Help:      "Query cache misses by backend and query key",
			},
			[]string{"backend", "query"},
		),
		Evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_evict_total",
				Help:      "Query cache evictions grouped by backend and reason",
			},
			[]string{"backend", "reason"},
		),
	}
}

func (m *CacheMetrics) IncHit(backend, query string) {
	if m == nil {
		return
	}
	m.Hits.WithLabelValues(backend, query).Inc()
}

func (m *CacheMetrics) IncMiss(backend, query string) {
	if m == nil {
		return
	}
	m.Misses.WithLabelValues(backend, query).Inc()
}

func (m *CacheMetrics) IncEvicted(backend, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.Evictions.WithLabelValues(backend, reason).Inc()
}
