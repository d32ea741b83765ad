package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge_indexer",
		Subsystem: "provider",
		Name:      "records_total",
		Help:      "Total number of logs processed by data providers",
	},
	[]string{"provider", "status"},
)

func observeProcessed(provider, status string) {
	metricProcessed.WithLabelValues(provider, status).Inc()
}
