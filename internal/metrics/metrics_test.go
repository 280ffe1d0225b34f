package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Download("binaries", ResultOK, 2048)
	m.Download("binaries", ResultOK, 1024)
	m.Download("fake", ResultError, 0)
	m.Batch(ResultOK)
	m.Worker(EventStart)
	m.WorkerRunning(true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.downloads.WithLabelValues("binaries", ResultOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.downloads.WithLabelValues("fake", ResultError)), 0)
	assert.InDelta(t, 3072, testutil.ToFloat64(m.downloadedBytes.WithLabelValues("binaries")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.batches.WithLabelValues(ResultOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.workerEvents.WithLabelValues(EventStart)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.workerRunning), 0)

	m.WorkerRunning(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.workerRunning), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Download("lists", ResultOK, 1)
		m.Batch(ResultError)
		m.Worker(EventStop)
		m.WorkerRunning(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Worker(EventRecover)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `zapret_worker_events_total{event="recover"} 1`)
}
