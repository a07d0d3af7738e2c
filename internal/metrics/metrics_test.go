package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(func() int { return 7 })

	m.WebhookRequest(http.StatusOK)
	m.WebhookRequest(http.StatusOK)
	m.WebhookRequest(http.StatusBadRequest)
	m.FilesQueued(3)
	m.FilesDropped(1)
	m.FileResubmitted()
	m.JobFinished(OutcomeSucceeded)
	m.ObserveStage(StageExtract, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhookRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookRequests.WithLabelValues("400")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.filesQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues(OutcomeSucceeded)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WebhookRequest(200)
		m.FilesQueued(1)
		m.FilesDropped(1)
		m.FileResubmitted()
		m.JobFinished(OutcomePanicked)
		m.ObserveStage(StageDownload, time.Now())
	})
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.FilesQueued(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "clip_bridge_files_queued_total 2")
}
