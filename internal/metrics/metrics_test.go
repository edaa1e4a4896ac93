package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(StageSolves.WithLabelValues("forward", OutcomeOK))
	StageSolves.WithLabelValues("forward", OutcomeOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StageSolves.WithLabelValues("forward", OutcomeOK)))

	Gap.Set(12.5)
	assert.Equal(t, 12.5, testutil.ToFloat64(Gap))

	CutPool.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(CutPool))
}

func TestHTTPLatencyHasOneSeriesPerRoute(t *testing.T) {
	HTTPLatency.WithLabelValues("GET", "/api/v1/runs/:id").Observe(0.01)
	HTTPLatency.WithLabelValues("GET", "/api/v1/runs/:id").Observe(0.02)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPLatency, "http_request_duration_seconds"), 1)
}
