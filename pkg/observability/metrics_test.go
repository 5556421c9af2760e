package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("GET", "/permissions", 200, 12*time.Millisecond)
	m.ObserveDecision("grant")
	m.ObserveDecision("forbidden")
	m.PluginsLoaded.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `plugboard_http_requests_total{method="GET",path="/permissions",status="200"} 1`)
	assert.Contains(t, body, `plugboard_authz_decisions_total{decision="grant"} 1`)
	assert.Contains(t, body, `plugboard_plugins_loaded 3`)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()
	a.ObserveDecision("grant")
	b.ObserveDecision("grant")
}
