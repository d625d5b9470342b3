package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	TicksTotal.WithLabelValues(SourceLive).Inc()
	CyclesTotal.WithLabelValues(ResultOK).Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["ticker_ticks_total"])
	assert.True(t, names["ticker_cycles_total"])
}

func TestCounterAndGauge(t *testing.T) {
	before := testutil.ToFloat64(TicksTotal.WithLabelValues(SourceBackfill))
	TicksTotal.WithLabelValues(SourceBackfill).Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(TicksTotal.WithLabelValues(SourceBackfill)))

	LatestPrice.Set(12.5)
	assert.Equal(t, 12.5, testutil.ToFloat64(LatestPrice))
}

func TestHandlerExposesMetrics(t *testing.T) {
	DroppedSnapshotsTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ticker_dropped_snapshots_total"))
}
