package bridge

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricRelays = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge_indexer",
		Subsystem: "bridge",
		Name:      "relays_total",
		Help:      "Total number of relay attempts by outcome",
	},
	[]string{"family", "direction", "status"},
)

var metricAPIRequestDurationMillis = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bridge_indexer",
		Subsystem: "bridge",
		Name:      "api_request_duration_millis",
		Help:      "Duration of proof and attestation API requests in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
	[]string{"status"},
)

func observeRelay(family Family, direction Direction, err error) {
	status := "submitted"
	switch {
	case err == nil:
	case IsRetryable(err):
		status = "not_claimable"
	case errors.Is(err, ErrAlreadyRelayed):
		status = "already_relayed"
	case errors.Is(err, ErrMessageNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	metricRelays.WithLabelValues(string(family), string(direction), status).Inc()
}

func observeAPIRequest(status string, t0 time.Time) {
	metricAPIRequestDurationMillis.WithLabelValues(status).Observe(float64(time.Since(t0).Milliseconds()))
}
