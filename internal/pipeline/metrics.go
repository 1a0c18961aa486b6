package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCards = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardforge",
		Name:      "cards_total",
		Help:      "Cards processed by batch runs, by outcome.",
	}, []string{"outcome"})
	metricCardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardforge",
		Name:      "card_failures_total",
		Help:      "Card failures by the stage that failed.",
	}, []string{"stage"})
	metricGenerationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cardforge",
		Name:      "generation_seconds",
		Help:      "Time from prompt submission to a located image.",
		Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
	})
)

func recordSuccess() {
	metricCards.WithLabelValues("ok").Inc()
}

func recordFailure(stage Stage) {
	metricCards.WithLabelValues("failed").Inc()
	metricCardFailures.WithLabelValues(string(stage)).Inc()
}

func recordGeneration(seconds float64) {
	if seconds > 0 {
		metricGenerationSeconds.Observe(seconds)
	}
}
