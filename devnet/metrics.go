package devnet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "incentives",
		Subsystem: "devnet",
		Name:      "block_height",
		Help:      "Height of the latest produced block",
	})

	finalizedEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "incentives",
		Subsystem: "devnet",
		Name:      "finalized_epoch",
		Help:      "Last finalized epoch",
	})

	collectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "devnet",
		Name:      "collections_published_total",
		Help:      "Number of published knowledge collections",
	})
)
