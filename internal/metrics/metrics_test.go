package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	now := time.Unix(1700000000, 0)
	m.ObserveRequest(OutcomeSuccess, now)
	m.ObserveRequest(OutcomeSuccess, now)
	m.ObserveRequest(OutcomeFailure, now)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRequest))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRequest(OutcomeSuccess, time.Now())
}
