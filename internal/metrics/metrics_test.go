package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservations(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("succeeded", 2*time.Second)
	m.ObserveRun("failed", time.Second)
	m.ObserveRun("succeeded", time.Second)
	m.ObserveSkip("ineligible")
	m.AddNewDates(3)
	m.AddNewDates(0)
	m.ObserveNotification("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkipsTotal.WithLabelValues("ineligible")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NewDatesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))
	assert.Greater(t, testutil.ToFloat64(m.LastRunTimestamp), 0.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.ObserveSkip("weekend")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `decreewatcher_skipped_triggers_total{reason="weekend"} 1`)
}
