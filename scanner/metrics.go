package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChainHeightGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "scanner",
		Name:      "chain_height",
		Help:      "Last observed head height of the scanned chain.",
	}, []string{"scanner_id", "chain_id"})
	CurrentHeightGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "scanner",
		Name:      "current_height",
		Help:      "Next block height to be scanned for protocol events.",
	}, []string{"scanner_id", "chain_id"})
	ScannedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "scanner",
		Name:      "scanned_blocks_total",
		Help:      "Number of blocks recorded in the event map, empty blocks included.",
	}, []string{"chain_id"})
)
