package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP запросы
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Операции с файлами: stage / materialize / thumbnail / retire
	AssetOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_asset_operations_total",
			Help: "Asset lifecycle operations by kind and result",
		},
		[]string{"op", "kind", "result"},
	)

	// Вход, сброс пароля, проверка на робота
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_auth_events_total",
			Help: "Authentication events by type and result",
		},
		[]string{"event", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AssetOperations,
		AuthEvents,
	)
}

// RecordRequest записывает метрики одного HTTP запроса.
func RecordRequest(method, route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAsset записывает результат файловой операции.
func RecordAsset(op, kind string, err error) {
	AssetOperations.WithLabelValues(op, kind, result(err == nil)).Inc()
}

// RecordAuth записывает событие аутентификации.
func RecordAuth(event string, ok bool) {
	AuthEvents.WithLabelValues(event, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
