// Package metrics содержит диагностические счётчики клиента для Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы запросов к бэкенду.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics хранит счётчики исходящих запросов. Значения не влияют на поведение клиента.
type Metrics struct {
	requests    *prometheus.CounterVec
	lastRequest prometheus.Gauge
}

// New создаёт и регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_client",
			Name:      "api_requests_total",
			Help:      "Outgoing backend requests by outcome.",
		}, []string{"outcome"}),
		lastRequest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salon_client",
			Name:      "api_last_request_timestamp_seconds",
			Help:      "Unix time of the last outgoing backend request.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.lastRequest)
	}

	return m
}

// ObserveRequest учитывает один запрос с исходом outcome.
func (m *Metrics) ObserveRequest(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.lastRequest.Set(float64(at.UnixNano()) / float64(time.Second))
}
