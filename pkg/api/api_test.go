package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/ethpandaops/bootstrapoor/pkg/env"
	"github.com/ethpandaops/bootstrapoor/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func testConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()

	cfg, err := config.Load(env.FromMap(vars))
	require.NoError(t, err)

	return cfg
}

type testServer struct {
	Server
	clock   *testClock
	hook    *test.Hook
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, vars map[string]string, opts Options) *testServer {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)

	clock := newTestClock()
	reg := prometheus.NewRegistry()

	if opts.Metrics == nil {
		opts.Metrics = metrics.New(reg)
		opts.Gatherer = reg
	}

	if opts.Now == nil {
		opts.Now = clock.Now
	}

	srv, err := NewServer(log, testConfig(t, vars), opts)
	require.NoError(t, err)

	return &testServer{
		Server:  srv,
		clock:   clock,
		hook:    hook,
		metrics: opts.Metrics,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	if req.RemoteAddr == "" || req.RemoteAddr == "192.0.2.1:1234" {
		req.RemoteAddr = "10.0.0.1:51234"
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	return s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t, map[string]string{"APP_NAME": "demo", "APP_INSTANCE": "3"}, Options{Version: "v1.2.3"})

	rec := s.get(t, "/api")
	require.Equal(t, http.StatusOK, rec.Code)

	info := decodeBody[AppInfoResponse](t, rec)
	assert.Equal(t, "demo", info.Name)
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, 3, info.Instance)

	rec = s.get(t, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)
}

func TestRoutesLiveUnderGlobalPrefix(t *testing.T) {
	s := newTestServer(t, map[string]string{"GLOBAL_PREFIX": "v2"}, Options{})

	assert.Equal(t, http.StatusOK, s.get(t, "/v2/health").Code)

	rec := s.get(t, "/health")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Equal(t, "资源不存在。", body.Message)
}

func TestEmptyPrefixMountsAtRoot(t *testing.T) {
	s := newTestServer(t, map[string]string{"GLOBAL_PREFIX": ""}, Options{})

	assert.Equal(t, http.StatusOK, s.get(t, "/health").Code)
	assert.Equal(t, http.StatusOK, s.get(t, "/metrics").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	require.Equal(t, http.StatusOK, s.get(t, "/api/health").Code)

	rec := s.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bootstrapoor_throttle_decisions_total{decision="allowed"} 1`)
	assert.Contains(t, rec.Body.String(), `bootstrapoor_http_requests_total{method="GET",path="/api/health",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	log, _ := test.NewNullLogger()

	srv, err := NewServer(log, testConfig(t, map[string]string{"METRICS_ENABLE": "false"}), Options{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResponseLoggerOnlyInDevelopment(t *testing.T) {
	dev := newTestServer(t, map[string]string{"APP_ENV": "development"}, Options{})
	dev.get(t, "/api/health")

	var lines []string
	for _, e := range dev.hook.AllEntries() {
		lines = append(lines, e.Message)
	}

	assert.Contains(t, lines, "--- response: GET -> /api/health +0ms")

	prod := newTestServer(t, nil, Options{})
	prod.get(t, "/api/health")

	for _, e := range prod.hook.AllEntries() {
		assert.False(t, strings.HasPrefix(e.Message, "--- response:"), e.Message)
	}
}

func TestStartServesOnListener(t *testing.T) {
	s := newTestServer(t, nil, Options{ListenAddr: "127.0.0.1:0"})

	assert.Nil(t, s.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/api/health")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
