package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.IncrementGeneration("create", 3)
	m.IncrementGeneration("regenerate", 5)
	m.IncrementGeneration("regenerate", 5)
	m.IncrementReport("csv")
	m.AddEvidenceBytes(10)
	m.AddEvidenceBytes(5)
	m.IncrementReload("ok")
	m.SetRegistryPacks(4)
	m.ObserveLockWait("acquired", time.Millisecond)
	m.ObserveRequest("/api/projects", "GET", "200", time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `truststack_checklist_generations_total{trigger="create"} 1`)
	assert.Contains(t, body, `truststack_checklist_generations_total{trigger="regenerate"} 2`)
	assert.Contains(t, body, `truststack_reports_rendered_total{format="csv"} 1`)
	assert.Contains(t, body, `truststack_evidence_bytes_total 15`)
	assert.Contains(t, body, `truststack_registry_packs 4`)
	assert.Contains(t, body, `truststack_registry_reloads_total{result="ok"} 1`)
	assert.Contains(t, body, `truststack_project_lock_wait_seconds_count{outcome="acquired"} 1`)
	assert.Contains(t, body, `truststack_http_request_duration_seconds_count{method="GET",route="/api/projects",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementGeneration("create", 1)
		m.IncrementReport("pdf")
		m.AddEvidenceBytes(1)
		m.IncrementReload("error")
		m.SetRegistryPacks(1)
		m.ObserveLockWait("timeout", time.Second)
		m.ObserveRequest("/", "GET", "200", time.Second)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_InstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.IncrementReport("csv")
	assert.NotContains(t, scrape(t, b), `truststack_reports_rendered_total{format="csv"}`)
}
