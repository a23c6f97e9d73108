package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rpggio/reverie/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := metrics.NewCollector("test")

	c.GenerationServed("interpret", metrics.SourceRemote)
	c.GenerationServed("interpret", metrics.SourceFallback)
	c.GenerationServed("interpret", metrics.SourceFallback)
	c.QuotaDenied("art", "free")

	count, err := testutil.GatherAndCount(c.Registry(), "test_generation_results_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(c.Registry(), "test_quota_denied_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCollector_Handler(t *testing.T) {
	c := metrics.NewCollector("")
	c.Rollover()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "reverie_quota_rollovers_total 1")
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *metrics.Collector
	require.NotPanics(t, func() {
		c.GenerationServed("art", metrics.SourceRemote)
		c.RemoteFailed("art", "timeout")
		c.QuotaConsumed("art", "free")
		c.QuotaDenied("art", "free")
		c.Rollover()
		c.GatewayRequest("/health", "200")
	})
	require.Nil(t, c.Registry())
}
