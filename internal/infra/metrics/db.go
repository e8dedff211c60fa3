package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbConns, dbAcquireWaits) }

var (
	dbConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_conns",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total, idle, acquired, max
	)
	dbAcquireWaits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_empty_acquire_total",
			Help: "Acquires that had to wait for a free connection, as reported by the pool.",
		},
	)
)

// PoolStat is the subset of pgxpool.Stat the gauges read.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

func SetDBPoolStats(st PoolStat) {
	dbConns.WithLabelValues("total").Set(float64(st.TotalConns()))
	dbConns.WithLabelValues("idle").Set(float64(st.IdleConns()))
	dbConns.WithLabelValues("acquired").Set(float64(st.AcquiredConns()))
	dbConns.WithLabelValues("max").Set(float64(st.MaxConns()))
	dbAcquireWaits.Set(float64(st.EmptyAcquireCount()))
}
