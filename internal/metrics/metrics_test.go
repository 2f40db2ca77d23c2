package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Decision("rejected", "expired")
	m.Decision("rejected", "expired")
	m.Decision("authorized", "")
	m.Lifecycle("login", "wrong_password")
	m.CacheLookup("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisionsTotal.WithLabelValues("rejected", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisionsTotal.WithLabelValues("authorized", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LifecycleEvents.WithLabelValues("login", "wrong_password")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountCacheLookups.WithLabelValues("hit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Decision("rejected", "no_token")
		m.Lifecycle("logout", "ok")
		m.CacheLookup("miss")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Decision("rejected", "no_token")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `authgate_gate_decisions_total{decision="rejected",reason="no_token"} 1`)
}
