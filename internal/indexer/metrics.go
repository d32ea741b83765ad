package indexer

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricSyncedBlock = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "bridge_indexer",
		Subsystem: "indexer",
		Name:      "synced_block",
		Help:      "Last block committed per filter",
	},
	[]string{"chain_id", "filter_id"},
)

var metricIndexedLogs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge_indexer",
		Subsystem: "indexer",
		Name:      "logs_total",
		Help:      "Total number of logs committed to the index",
	},
	[]string{"chain_id"},
)

var metricScanSteps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge_indexer",
		Subsystem: "indexer",
		Name:      "scan_steps_total",
		Help:      "Total number of scan steps by outcome",
	},
	[]string{"chain_id", "status"},
)

func observeScanStep(chainID uint64, status string) {
	metricScanSteps.WithLabelValues(strconv.FormatUint(chainID, 10), status).Inc()
}

func observeCommit(chainID uint64, filterID string, synced uint64, logs int) {
	chain := strconv.FormatUint(chainID, 10)
	metricSyncedBlock.WithLabelValues(chain, filterID).Set(float64(synced))
	metricIndexedLogs.WithLabelValues(chain).Add(float64(logs))
}
