package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(schedulesRunTotal) }

var schedulesRunTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "performance_schedules_run_total",
		Help: "Scheduled performance test runs by cadence and result.",
	},
	[]string{"cadence", "result"},
)

func IncScheduleRun(cadence, result string) {
	schedulesRunTotal.WithLabelValues(norm(cadence), norm(result)).Inc()
}
