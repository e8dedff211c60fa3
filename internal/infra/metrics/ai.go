package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensTotal,
		aiCostUSD,
		aiCallsLatencyMs,
		aiAccuracyScore,
		aiProviderSkipped,
	)
}

var (
	aiTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Sum of total tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCostUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cost_usd",
			Help: "Estimated spend in USD per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 60000},
		},
		[]string{"provider", "model", "success"},
	)

	aiAccuracyScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_accuracy_score",
			Help:    "Word-overlap accuracy of successful performance tests.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"provider"},
	)

	aiProviderSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_skipped_total",
			Help: "Requested providers skipped because they are not registered.",
		},
		[]string{"provider"},
	)
)

// ObserveProviderCall records one chat completion made by the performance tester.
func ObserveProviderCall(provider, model string, tokens int, costUSD float64, latencyMs int64, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensTotal.WithLabelValues(lbl...).Add(float64(tokens))
	aiCostUSD.WithLabelValues(lbl...).Add(costUSD)
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func ObserveAccuracy(provider string, score float64) {
	aiAccuracyScore.WithLabelValues(norm(provider)).Observe(score)
}

func IncProviderSkipped(provider string) {
	aiProviderSkipped.WithLabelValues(norm(provider)).Inc()
}
