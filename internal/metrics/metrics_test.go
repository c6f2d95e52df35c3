package metrics_test

import (
	"testing"

	"github.com/medusa-ds9/medusad/internal/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func testutilCount(c prometheus.Counter) float64 {
	var m dto.Metric
	_ = c.Write(&m)
	return m.GetCounter().GetValue()
}

func TestRegisterSucceedsOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { metrics.Register(reg) })
}

func TestEventsDispatchedIncrements(t *testing.T) {
	metrics.EventsDispatched.Reset()
	metrics.EventsDispatched.WithLabelValues("open", "allow").Inc()

	count := testutilCount(metrics.EventsDispatched.WithLabelValues("open", "allow"))
	require.Equal(t, float64(1), count)
}

func TestPendingRequestsGaugeMoves(t *testing.T) {
	metrics.PendingRequests.Reset()
	metrics.PendingRequests.WithLabelValues("fetch").Inc()
	metrics.PendingRequests.WithLabelValues("fetch").Inc()
	metrics.PendingRequests.WithLabelValues("fetch").Dec()

	var m dto.Metric
	_ = metrics.PendingRequests.WithLabelValues("fetch").Write(&m)
	require.Equal(t, float64(1), m.GetGauge().GetValue())
}

func TestDecodeErrorsIncrements(t *testing.T) {
	metrics.DecodeErrors.Reset()
	metrics.DecodeErrors.WithLabelValues("parse").Inc()

	count := testutilCount(metrics.DecodeErrors.WithLabelValues("parse"))
	require.Equal(t, float64(1), count)
}
