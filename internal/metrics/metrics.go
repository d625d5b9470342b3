package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SourceLive     = "live"
	SourceBackfill = "backfill"
	SourceSeed     = "seed"

	ResultOK    = "ok"
	ResultError = "error"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticker_ticks_total", Help: "Ticks written to the store"},
		[]string{"source"},
	)
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticker_cycles_total", Help: "Live scheduler cycles"},
		[]string{"result"},
	)
	LatestPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ticker_latest_price", Help: "Price of the newest tick"},
	)
	Subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ticker_subscribers", Help: "Active snapshot subscribers"},
		[]string{"transport"},
	)
	DroppedSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ticker_dropped_snapshots_total", Help: "Snapshots dropped on full subscriber channels"},
	)
	PositionChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticker_position_changes_total", Help: "Open position changes"},
		[]string{"position"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, CyclesTotal, LatestPrice, Subscribers, DroppedSnapshotsTotal, PositionChangesTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
