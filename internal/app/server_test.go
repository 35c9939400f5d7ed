package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/export"
	"github.com/xenking/cafe-pos/internal/handler"
	"github.com/xenking/cafe-pos/pkg/health"
)

// Response types are local so the tests only see the wire format.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tableResponse struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Status string `json:"status"`
}

// --- Helpers ---

type testEnv struct {
	srv    *httptest.Server
	health *health.Health
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := &Config{
		StoreTimeout:      2 * time.Second,
		Cashiers:          []string{"Emre"},
		LowStockThreshold: 10,
		Store: StoreConfig{
			Driver:      DriverBolt,
			Path:        filepath.Join(t.TempDir(), "pos.db"),
			LockTimeout: time.Second,
		},
		CORS: CORSConfig{Origins: []string{"*"}},
	}
	store, err := OpenStore(ctx, cfg.Store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lc, err := order.NewLifecycle(store, order.WithTimeout(cfg.StoreTimeout))
	require.NoError(t, err)

	hs := health.New()
	hs.Add(health.Readiness, "store", health.Options{}, health.PingCheck(store))
	hs.SetReady(true)

	api := newAPI(cfg, store, lc, export.NewBackuper(store, t.TempDir(), false, time.UTC), time.UTC)
	srv := httptest.NewServer(newHTTPHandler(ctx, cfg, hs, handler.NewEngine(api),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(),
	))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, health: hs}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// --- Tests ---

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeJSON[healthResponse](t, resp).Status)

	resp = e.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e.health.SetReady(false)
	resp = e.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decodeJSON[healthResponse](t, resp)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks, "_readiness")
}

func TestRequestIDHeader(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/livez", nil, nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = e.do(t, http.MethodGet, "/api/tables", nil, http.Header{"X-Request-Id": {"custom-request-id-12345"}})
	assert.Equal(t, "custom-request-id-12345", resp.Header.Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodOptions, "/api/register/lines", nil, http.Header{
		"Origin":                        {"http://till.local"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), handler.RegisterIDHeader)
}

func TestAPIThroughMiddleware(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/tables", map[string]int{"number": 3}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tbl := decodeJSON[tableResponse](t, resp)
	assert.Equal(t, "free", tbl.Status)

	resp = e.do(t, http.MethodPost, "/api/register/table", map[string]string{"tableId": tbl.ID},
		http.Header{handler.RegisterIDHeader: {"terrace"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/register/complete", nil,
		http.Header{handler.RegisterIDHeader: {"terrace"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, http.StatusUnprocessableEntity, body.Code)
	assert.Equal(t, order.ErrInvalidOrder.Error(), body.Message)

	resp = e.do(t, http.MethodGet, "/api/cashiers", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Emre"}, decodeJSON[[]string](t, resp))
}

func TestUnknownPathOutsideAPI(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
