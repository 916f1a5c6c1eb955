package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveTransition("WARRANTY", "ACTIVE", "LAPSED", "SCHEDULER")
	m.ObserveTransition("WARRANTY", "ACTIVE", "LAPSED", "SCHEDULER")
	m.ObserveJob("grace-period", "ok", 3, 1, 0, 20*time.Millisecond)
	m.ObserveNotification("reminder", "email", "error")

	require.Equal(t, 2.0, value(t, m.Transitions.WithLabelValues("WARRANTY", "ACTIVE", "LAPSED", "SCHEDULER")))
	require.Equal(t, 3.0, value(t, m.JobRecords.WithLabelValues("grace-period", "processed")))
	require.Equal(t, 1.0, value(t, m.JobRecords.WithLabelValues("grace-period", "skipped")))
	require.Equal(t, 1.0, value(t, m.Notifications.WithLabelValues("reminder", "email", "error")))
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTransition("a", "b", "c", "d")
	m.ObserveJob("j", "ok", 0, 0, 0, 0)
	m.ObserveNotification("k", "sms", "ok")
	m.ObserveHTTP("/x", "GET", "200", 0)
	m.ObserveTokenFailure("p", "invalid")
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("/warranties/{id}", "GET", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "warranty_http_requests_total"))
}

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
