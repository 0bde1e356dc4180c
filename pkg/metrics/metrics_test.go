package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordThrottleDecision(true)
	m.RecordThrottleDecision(true)
	m.RecordThrottleDecision(false)
	m.RecordUpload(128)
	m.RecordUpload(64)
	m.RecordLogRotation("app")
	m.SetThrottleTrackedClients(3)
	m.SetBuildInfo("v1", "abc", "today", "id")
	m.RecordHTTPRequest("GET", "/api/health", "200", 0.01)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ThrottleDecisionsTotal.WithLabelValues("allowed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ThrottleDecisionsTotal.WithLabelValues("denied")), 0)
	assert.InDelta(t, 192, testutil.ToFloat64(m.UploadBytesTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.UploadFilesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LogRotationsTotal.WithLabelValues("app")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ThrottleTrackedClients), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/health", "200")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
