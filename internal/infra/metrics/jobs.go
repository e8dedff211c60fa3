package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workItemsProcessedTotal, assistantPollAttempts, assistantRunsTotal) }

var workItemsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "work_items_processed_total",
		Help: "Total number of work items processed, labeled by kind and resulting status.",
	},
	[]string{"kind", "status"}, // status: questions_generated, completed, pending, failed, skipped
)

var assistantPollAttempts = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "assistant_poll_attempts",
		Help:    "Status polls needed per assistant run.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 30},
	},
)

var assistantRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_runs_total",
		Help: "Assistant runs by outcome (completed or the failing stage).",
	},
	[]string{"outcome"},
)

func IncWorkItem(kind, status string) {
	workItemsProcessedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func ObserveAssistantRun(outcome string, attempts int) {
	assistantRunsTotal.WithLabelValues(norm(outcome)).Inc()
	if attempts > 0 {
		assistantPollAttempts.Observe(float64(attempts))
	}
}
