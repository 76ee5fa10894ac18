package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/common/bootstrap"
	"github.com/lyzr/teststate/common/config"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	t          *testing.T
	e          *echo.Echo
	components *bootstrap.Components
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *apiFixture {
	t.Helper()
	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "stateapi", Port: 8080},
		Store: config.StoreConfig{
			URI:                    "memory://",
			NamespacePrefix:        tenant.DefaultPrefix,
			MaxPoolSize:            1,
			ServerSelectionTimeout: time.Second,
			ConnectTimeout:         time.Second,
			OperationTimeout:       time.Second,
		},
		Cache:   config.CacheConfig{Backend: config.CacheBackendStore, DefaultTTL: time.Hour},
		Tenants: config.TenantConfig{Allowed: []string{"client_A", "client_B"}},
	}
	for _, m := range mutate {
		m(cfg)
	}

	components, err := bootstrap.Setup(context.Background(), "stateapi",
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(logger.Discard()),
		bootstrap.WithoutTelemetry(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Shutdown(context.Background()) })

	return &apiFixture{t: t, e: NewEcho(container.NewContainer(components)), components: components}
}

func (f *apiFixture) do(method, path, hospital, body string) (int, map[string]any) {
	f.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if hospital != "" {
		req.Header.Set(tenant.Header, hospital)
	}

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestTenantResolution(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(http.MethodGet, "/api/v1/heals/pending", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], tenant.Header)

	code, _ = f.do(http.MethodGet, "/api/v1/heals/pending", "client/../A", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodGet, "/api/v1/heals/pending", "client_Z", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = f.do(http.MethodGet, "/api/v1/heals/pending", "client_A", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["count"])
}

func TestTestCaseRoutes(t *testing.T) {
	f := newFixture(t)
	tc := `{"test_id":"TC_PATIENT_REG_001","name":"Patient registration","tags":["smoke","epic"]}`

	code, body := f.do(http.MethodPost, "/api/v1/testcases", "client_A", tc)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["id"])

	code, _ = f.do(http.MethodPost, "/api/v1/testcases", "client_A", tc)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(http.MethodPost, "/api/v1/testcases", "client_A", `{"name":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(http.MethodGet, "/api/v1/testcases/TC_PATIENT_REG_001", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "client_A", body["hospital"])
	assert.Equal(t, "active", body["status"])

	code, _ = f.do(http.MethodGet, "/api/v1/testcases/TC_PATIENT_REG_001", "client_B", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(http.MethodPatch, "/api/v1/testcases/TC_PATIENT_REG_001", "client_A", `{"name":"Registration v2"}`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(http.MethodPatch, "/api/v1/testcases/TC_PATIENT_REG_001", "client_A", `{"extra":{"hospital":"client_B"}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodPatch, "/api/v1/testcases/TC_MISSING", "client_A", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(http.MethodGet, "/api/v1/testcases?tag=epic", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = f.do(http.MethodGet, "/api/v1/testcases?limit=abc", "client_A", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodDelete, "/api/v1/testcases/TC_PATIENT_REG_001", "client_A", "")
	assert.Equal(t, http.StatusOK, code)

	code, body = f.do(http.MethodGet, "/api/v1/testcases", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["count"])

	code, body = f.do(http.MethodGet, "/api/v1/testcases?status=inactive", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = f.do(http.MethodDelete, "/api/v1/testcases/TC_MISSING", "client_A", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestExecutionAndAnalyticsRoutes(t *testing.T) {
	f := newFixture(t)

	for i := range 6 {
		status := "failed"
		if i%2 == 0 {
			status = "passed"
		}
		code, _ := f.do(http.MethodPost, "/api/v1/executions", "client_A",
			`{"test_case_id":"TC_FLAKY","status":"`+status+`","duration_ms":1500}`)
		require.Equal(t, http.StatusCreated, code)
	}

	code, body := f.do(http.MethodGet, "/api/v1/testcases/TC_FLAKY/executions?limit=2", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["count"])

	code, body = f.do(http.MethodGet, "/api/v1/analytics/flaky", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = f.do(http.MethodGet, "/api/v1/analytics/flaky?min=0.9&max=0.1", "client_A", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(http.MethodGet, "/api/v1/analytics/flaky", "client_B", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["count"])

	code, body = f.do(http.MethodGet, "/api/v1/analytics/execution-stats?days=1", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	passed, ok := body["passed"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, passed["count"])

	code, body = f.do(http.MethodGet, "/api/v1/analytics/dashboard", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "client_A", body["hospital"])
	assert.Len(t, body["flaky_tests"], 1)
}

func TestSelfHealRoutes(t *testing.T) {
	f := newFixture(t)
	heal := `{
		"test_id": "TC_PATIENT_REG_001",
		"failure_reason": "Element not found: #submit-registration",
		"ui_change_detected": {"old_selector": "#submit-registration", "new_selector": "#submit-btn", "confidence": 0.92},
		"fix_applied": {"file": "tests/patient_registration.py", "line": 78}
	}`

	code, body := f.do(http.MethodPost, "/api/v1/heals", "client_A", heal)
	require.Equal(t, http.StatusCreated, code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	code, _ = f.do(http.MethodPost, "/api/v1/heals", "client_A",
		`{"test_id":"TC_X","ui_change_detected":{"confidence":1.5}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(http.MethodGet, "/api/v1/heals/pending", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, body = f.do(http.MethodPost, "/api/v1/heals/"+id+"/approve", "client_B", `{"notes":"not mine"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["approved"])

	code, body = f.do(http.MethodPost, "/api/v1/heals/"+id+"/approve", "client_A", `{"notes":"verified"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["approved"])

	code, body = f.do(http.MethodPost, "/api/v1/heals/"+id+"/approve", "client_A", `{}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["approved"])

	code, body = f.do(http.MethodGet, "/api/v1/heals/"+id, "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["engineer_approved"])
	assert.Equal(t, "verified", body["engineer_notes"])

	code, _ = f.do(http.MethodGet, "/api/v1/heals/not-an-id", "client_A", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(http.MethodGet, "/api/v1/heals/similar?reason=submit+registration+not+found", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = f.do(http.MethodGet, "/api/v1/heals/similar", "client_A", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(http.MethodGet, "/api/v1/analytics/success-rate", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 1.0, body["success_rate"], 1e-9)
}

func TestSnapshotAndCacheRoutes(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(http.MethodPost, "/api/v1/snapshots/login_page/diff", "client_A", `{"selectors":["#user"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_new"])

	code, _ = f.do(http.MethodGet, "/api/v1/snapshots/login_page/latest", "client_A", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(http.MethodPost, "/api/v1/snapshots", "client_A",
		`{"page_identifier":"login_page","selectors":["#user","#pass","#login"]}`)
	require.Equal(t, http.StatusCreated, code)

	code, body = f.do(http.MethodGet, "/api/v1/snapshots/login_page/latest", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["selectors"], 3)

	code, body = f.do(http.MethodPost, "/api/v1/snapshots/login_page/diff", "client_A",
		`{"selectors":["#user","#pass","#login-btn"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["has_changes"])
	assert.Len(t, body["changes"], 2)

	code, _ = f.do(http.MethodPut, "/api/v1/context-cache/abc123", "client_A",
		`{"context_data":{"page":"login"},"ttl_hours":1}`)
	require.Equal(t, http.StatusNoContent, code)

	code, body = f.do(http.MethodGet, "/api/v1/context-cache/abc123", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"page": "login"}, body["context_data"])

	code, _ = f.do(http.MethodGet, "/api/v1/context-cache/abc123", "client_B", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthRoute(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	require.NoError(t, f.components.Store.Close(context.Background()))

	code, body = f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])

	code, _ = f.do(http.MethodGet, "/api/v1/heals/pending", "client_A", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestTenantRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Redis.Addr = mr.Addr()
		cfg.RateLimit.PerTenantPerMinute = 2
	})
	require.NotNil(t, f.components.RateLimiter)

	for range 2 {
		code, _ := f.do(http.MethodGet, "/api/v1/heals/pending", "client_A", "")
		require.Equal(t, http.StatusOK, code)
	}

	code, body := f.do(http.MethodGet, "/api/v1/heals/pending", "client_A", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "tenant_rate_limit_exceeded", body["error"])

	code, _ = f.do(http.MethodGet, "/api/v1/heals/pending", "client_B", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestIngestionKeepsUpstreamFields(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(http.MethodPost, "/api/v1/testcases", "client_A", `{"test_id":"TC_1","epic_version":"2025.11"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := f.do(http.MethodGet, "/api/v1/testcases/TC_1", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2025.11", body["epic_version"])
	assert.Equal(t, "TC_1", body["test_id"])

	code, _ = f.do(http.MethodPost, "/api/v1/executions", "client_A",
		`{"test_case_id":"TC_1","status":"failed","duration_ms":"5.2s"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body = f.do(http.MethodGet, "/api/v1/testcases/TC_1/executions", "client_A", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	runs, ok := body["executions"].([]any)
	require.True(t, ok)
	run, ok := runs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", run["status"])
	assert.Contains(t, run, "unparsed")

	code, _ = f.do(http.MethodPost, "/api/v1/testcases", "client_A", `["TC_2"]`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodPost, "/api/v1/testcases", "client_A", `{"test_id":"TC_3","status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodPatch, "/api/v1/testcases/TC_1", "client_A", `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
