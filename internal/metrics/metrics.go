package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 支付网关指标集合，持有独立的 Registry
type Recorder struct {
	registry          *prometheus.Registry
	paymentOperations *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	rateLimited       *prometheus.CounterVec
}

// New 创建并注册全部指标
func New(namespace string) *Recorder {
	namespace = normalizeNamespace(namespace)
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		paymentOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_operations_total",
				Help:      "Payment operations by operation (intent/authorize/capture/void/refund) and result.",
			},
			[]string{"operation", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by a rate limit rule.",
			},
			[]string{"rule"},
		),
	}
	registry.MustRegister(
		r.paymentOperations,
		r.httpRequests,
		r.httpDuration,
		r.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe 记录一次支付操作结果
func (r *Recorder) Observe(operation, result string) {
	if r == nil {
		return
	}
	r.paymentOperations.WithLabelValues(norm(operation), norm(result)).Inc()
}

// ObserveHTTP 记录一次 HTTP 请求
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRateLimited 记录一次限流拒绝
func (r *Recorder) ObserveRateLimited(rule string) {
	if r == nil {
		return
	}
	r.rateLimited.WithLabelValues(norm(rule)).Inc()
}

// Handler 暴露 Prometheus 抓取端点
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry 底层 Registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func norm(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func normalizeNamespace(namespace string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return "lunar_gateway"
	}
	return strings.ReplaceAll(namespace, "-", "_")
}
