package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricPreviews = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cardforge",
	Name:      "previews_total",
	Help:      "Preview compositions served, by outcome.",
}, []string{"outcome"})

func recordPreview(outcome string) {
	metricPreviews.WithLabelValues(outcome).Inc()
}
