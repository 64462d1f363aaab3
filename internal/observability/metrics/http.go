package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP 指标以路由模板为 route 标签，避免 proofId 撑爆基数。
var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	apiServerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Subsystem: "api",
		Name:      "server_errors_total",
		Help:      "API requests answered with a 5xx status.",
	}, []string{"route", "method"})

	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proofflow",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency. /reason includes the model round trip.",
		Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 15, 30, 60, 90},
	}, []string{"route", "method"})

	apiRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofflow",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the API rate limiter.",
	}, []string{"route"})
)

// ObserveHTTPRequest 记录一次 API 请求。
func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	apiRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		apiServerErrors.WithLabelValues(route, method).Inc()
	}
	apiLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordRateLimited 统计被限流拒绝的请求。
func RecordRateLimited(route string) {
	apiRateLimited.WithLabelValues(route).Inc()
}

// Handler 以 Prometheus 文本格式暴露默认注册表。
func Handler() http.Handler {
	return promhttp.Handler()
}
