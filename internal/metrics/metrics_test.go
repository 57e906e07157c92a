package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.AuthCheck(OutcomeRevoked)
	m.AuthCheck(OutcomeRevoked)
	m.Login(OutcomeOK)
	m.Revoked()
	m.Denied("not_project_owner")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthChecks.WithLabelValues(OutcomeRevoked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Revocations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyDenials.WithLabelValues("not_project_owner")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AuthCheck(OutcomeOK)
		m.Login(OutcomeOK)
		m.Revoked()
		m.Denied("x")
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Revoked()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "projecthub_auth_revocations_total 1"))
}
