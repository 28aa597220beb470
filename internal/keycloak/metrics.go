// metrics.go — Prometheus метрики обращений к Keycloak.
package keycloak

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// statusTransportError — значение лейбла status, если ответ не получен.
const statusTransportError = "error"

var (
	// requestsTotal — количество запросов к Keycloak по операциям и статусам.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oa_keycloak_requests_total",
			Help: "Общее количество запросов к Keycloak",
		},
		[]string{"operation", "status"},
	)

	// requestDuration — длительность запросов к Keycloak.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oa_keycloak_request_duration_seconds",
			Help:    "Длительность запросов к Keycloak в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func observe(op, status string, start time.Time) {
	requestsTotal.WithLabelValues(op, status).Inc()
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
