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

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.ObserveAgentCall("chat", "ok", 20*time.Millisecond)
	r.ObserveAgentCall("chat", "transport_error", time.Second)
	r.IncReportTransition("COMPLETED")
	r.IncChatMessage("USER")
	r.IncChatMessage("AI")
	r.ObserveJob("reports.generate", "succeeded", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.agentRequests.WithLabelValues("chat", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reportTransitions.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chatMessages.WithLabelValues("AI")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobsTotal.WithLabelValues("reports.generate", "succeeded")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveAgentCall("chat", "ok", time.Second)
		r.IncReportTransition("FAILED")
		r.IncChatMessage("AI")
		r.ObserveJob("x", "failed", time.Second)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.IncReportTransition("PENDING")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `analysis_report_transitions_total{status="PENDING"} 1`)
}
