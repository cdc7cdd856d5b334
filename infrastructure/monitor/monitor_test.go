package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOrderSubmitted("rb2501")
	m.RecordOrderSubmitted("rb2501")
	m.RecordOrderRejected("risk_blocked")
	m.RecordFill("rb2501", 3)
	m.RecordFill("rb2501", 2)
	m.RecordRiskDecision("order_risk", "", "passed")
	m.RecordRiskDecision("order_risk", "capital_limit", "blocked")
	m.IncAuditDropped()
	m.IncAuditWriteError()
	m.RecordMonitorAlert("critical")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersSubmitted.WithLabelValues("rb2501")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersRejected.WithLabelValues("risk_blocked")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fills.WithLabelValues("rb2501")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.filledVolume.WithLabelValues("rb2501")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskDecisions.WithLabelValues("order_risk", "none", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskDecisions.WithLabelValues("order_risk", "capital_limit", "blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditWriteErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.monitorAlerts.WithLabelValues("critical")))
}

func TestGauges(t *testing.T) {
	m := New(DefaultConfig())
	m.UpdateAccount(649_965, 1_000_000)
	m.UpdateRiskRatios(0.35, -0.02, 0.01)

	assert.Equal(t, 649_965.0, testutil.ToFloat64(m.cash))
	assert.Equal(t, 1_000_000.0, testutil.ToFloat64(m.equity))
	assert.Equal(t, 0.35, testutil.ToFloat64(m.positionRatio))
	assert.Equal(t, -0.02, testutil.ToFloat64(m.dailyPnLRatio))
}

func TestHandlerExposesPrivateRegistry(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordOrderCanceled()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "frg_risk_orders_canceled_total 1"))
	assert.False(t, strings.Contains(body, "go_goroutines"), "default collectors are not registered")
}
