package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ItemProcessed("Added")
	m.ItemProcessed("Added")
	m.ItemProcessed("Error")
	m.StageFailed("solution")
	m.FetchFailed("consulting")
	m.RecordProduced()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("Added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("Error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("solution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("consulting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsProduced))
}

func TestMetrics_RunFinished(t *testing.T) {
	m := New()
	end := time.Unix(1_700_000_000, 0)
	m.RunFinished(end.Add(-30*time.Second), end)

	assert.Equal(t, float64(end.Unix()), testutil.ToFloat64(m.LastRunTime))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ItemProcessed("Added")
		m.StageFailed("analysis")
		m.FetchFailed("x")
		m.RecordProduced()
		m.RunFinished(time.Now(), time.Now())
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordProduced()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ideaminer_records_produced_total 1")
}
