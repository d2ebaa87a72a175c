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

func TestCollector_ObserveGeneration(t *testing.T) {
	c := NewCollector("test")

	c.ObserveGeneration("gemini", "success", 2*time.Second)
	c.ObserveGeneration("gemini", "success", time.Second)
	c.ObserveGeneration("prediction", "request_failed", time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.generationsTotal.WithLabelValues("gemini", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.generationsTotal.WithLabelValues("prediction", "request_failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.generationDuration))
}

func TestCollector_Quota(t *testing.T) {
	c := NewCollector("test")

	c.ObserveQuota("success")
	c.ObserveQuota("error")
	c.SetQuota(5000)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.quotaRefreshTotal.WithLabelValues("error")))
	assert.Equal(t, float64(5000), testutil.ToFloat64(c.quotaRemaining))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("aihubmix")
	c.RecordHTTPRequest(http.MethodPost, "/api/generate", http.StatusOK, 300*time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `aihubmix_http_requests_total{method="POST",route="/api/generate",status="200"} 1`)
}

func TestCollectors_AreIsolated(t *testing.T) {
	// 同じ namespace でも Registry が別なので二重登録にならない
	a := NewCollector("dup")
	b := NewCollector("dup")
	a.ObserveQuota("success")

	assert.Equal(t, float64(0), testutil.ToFloat64(b.quotaRefreshTotal.WithLabelValues("success")))
}
